package locator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// Document answers a path expression with the current match set. The
// resolver never caches answers: the document may change between calls.
type Document interface {
	Evaluate(ctx context.Context, expr string) ([]*html.Node, error)
}

// Result is a successful resolution: the absolute expression that matched
// exactly one element, and that element.
type Result struct {
	Selector    string
	Element     *html.Node
	Evaluations int
}

// UnresolvableError reports that no combination at any explored depth
// matched exactly one element.
type UnresolvableError struct {
	Tag         string
	Evaluations int
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("locator: no unique locator for <%s> after %d evaluations, try a different element", e.Tag, e.Evaluations)
}

// Direction tells a node how to join its step with the carried context.
type Direction int

const (
	// Up builds towards the root: the carried path is a suffix.
	Up Direction = iota
	// Down builds into descendants: the carried path is the target
	// expression, narrowed with a predicate.
	Down
)

// Resolver searches attribute combinations of a locator tree for the
// first absolute expression that is unique in the document.
type Resolver struct {
	doc    Document
	logger *slog.Logger
}

// NewResolver returns a Resolver over doc.
func NewResolver(doc Document, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{doc: doc, logger: logger}
}

type carry struct {
	expr string // up: suffix path; down: target expression
	desc string // down: relative path from the target to this node's parent
}

type search struct {
	r     *Resolver
	evals int
}

// Resolve runs the search from root. Exhaustion returns *UnresolvableError;
// cancellation returns the context's cause.
func (r *Resolver) Resolve(ctx context.Context, root *Node) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("locator: resolve: nil tree")
	}
	s := &search{r: r}
	res, err := s.node(ctx, root, carry{}, Up)
	if err != nil {
		return nil, err
	}
	if res == nil {
		r.logger.Info("locator: unresolvable", "tag", root.Tag, "evaluations", s.evals)
		return nil, &UnresolvableError{Tag: root.Tag, Evaluations: s.evals}
	}
	res.Evaluations = s.evals
	r.logger.Debug("locator: resolved", "selector", res.Selector, "evaluations", s.evals)
	return res, nil
}

// ResolveElement builds the locator tree of el and resolves it. The unique
// match must be el itself.
func (r *Resolver) ResolveElement(ctx context.Context, el *html.Node) (*Result, *Node, error) {
	tree, err := Build(el)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.Resolve(ctx, tree)
	if err != nil {
		return nil, tree, err
	}
	if res.Element != el {
		return nil, tree, &UnresolvableError{Tag: tree.Tag, Evaluations: res.Evaluations}
	}
	return res, tree, nil
}

func (s *search) node(ctx context.Context, n *Node, c carry, dir Direction) (*Result, error) {
	for combo := range Combinations(n.Attributes) {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}

		step := Step(n.Tag, combo.Items)
		joined := step
		switch dir {
		case Up:
			if c.expr != "" {
				joined = step + "/" + c.expr
			}
		case Down:
			joined = c.expr + "[" + c.desc + step + "]"
		}
		abs := "//" + joined

		matches, err := s.r.doc.Evaluate(ctx, abs)
		s.evals++
		if err != nil {
			return nil, err
		}
		s.r.logger.Debug("locator: evaluated", "expr", abs, "matches", len(matches), "size", combo.Size)

		switch len(matches) {
		case 0:
			continue
		case 1:
			return &Result{Selector: abs, Element: matches[0]}, nil
		}

		if n.Parent != nil {
			res, err := s.node(ctx, n.Parent, carry{expr: joined}, Up)
			if err != nil || res != nil {
				return res, err
			}
		}
		if len(n.Children) > 0 {
			next := carry{expr: joined}
			if dir == Down {
				next = carry{expr: c.expr, desc: c.desc + step + "/"}
			}
			res, err := s.node(ctx, n.Children[0], next, Down)
			if err != nil || res != nil {
				return res, err
			}
		}
		// The most specific combination plus a parent and a child step is
		// still ambiguous: smaller subsets match supersets of these.
		if combo.Iteration == 0 {
			return nil, nil
		}
	}
	return nil, nil
}

// Step renders one location step: the tag followed by the ANDed
// predicates of attrs.
func Step(tag string, attrs []Attribute) string {
	if len(attrs) == 0 {
		return tag
	}
	preds := make([]string, len(attrs))
	for i, a := range attrs {
		preds[i] = a.Predicate()
	}
	return tag + "[" + strings.Join(preds, " and ") + "]"
}
