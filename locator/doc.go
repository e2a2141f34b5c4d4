// Package locator derives structural fingerprints of DOM elements and
// resolves them back to a single element.
//
// A locator tree is the target element (tag plus identity-bearing attribute
// candidates) linked upward to its ancestors and downward through its
// single-child descendant chain. The Resolver walks attribute combinations,
// most specific first, and joins them with parent and child steps until an
// absolute XPath expression matches exactly one element:
//
//	res, tree, err := locator.NewResolver(doc, logger).ResolveElement(ctx, el)
//
// Trees are rebuilt for every resolution and never mutated. They serialise
// to an expanded shape (tagName/attrs/parent/children) or a minified one
// (t/a/p/c) for storage and export.
package locator
