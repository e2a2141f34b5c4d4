// Package document is the document query collaborator: a parsed HTML tree
// that answers XPath expressions with the current set of matching elements.
//
// A Document is a snapshot. Live pages are re-snapshotted by the browser
// bridge whenever the element identity must reflect the current DOM, so
// results are never cached across evaluations.
package document

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document wraps the root of a parsed HTML tree.
type Document struct {
	root *html.Node
}

// New wraps an already parsed tree. root is normally the html.DocumentNode.
func New(root *html.Node) *Document {
	return &Document{root: root}
}

// Parse reads HTML from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Evaluate runs an XPath expression against the whole document and returns
// the matching elements in document order. Non-element results (text or
// attribute nodes) are dropped.
func (d *Document) Evaluate(ctx context.Context, expr string) ([]*html.Node, error) {
	return d.EvaluateFrom(ctx, expr, d.root)
}

// EvaluateFrom runs expr with from as the context node.
func (d *Document) EvaluateFrom(ctx context.Context, expr string, from *html.Node) ([]*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if from == nil {
		from = d.root
	}
	nodes, err := htmlquery.QueryAll(from, expr)
	if err != nil {
		return nil, fmt.Errorf("document: evaluate %q: %w", expr, err)
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out, nil
}

// Contains reports whether n belongs to this document's tree.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ElementChildren returns the direct element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var kids []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			kids = append(kids, c)
		}
	}
	return kids
}

// OwnText returns the first non-blank direct text child of n, whitespace
// normalised. Text inside descendant elements is ignored.
func OwnText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if s := NormalizeSpace(c.Data); s != "" {
			return s
		}
	}
	return ""
}

// TextContent returns the whitespace-normalised text of n and all its
// descendants, like XPath normalize-space(string(.)).
func TextContent(n *html.Node) string {
	return NormalizeSpace(htmlquery.InnerText(n))
}

// NormalizeSpace collapses runs of Unicode whitespace (including U+00A0)
// into single spaces and trims the ends, as the XPath engine's
// normalize-space() does.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
