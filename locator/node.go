package locator

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/document"
)

// Role says which structural links a Node may carry.
type Role int

const (
	// RoleRoot is the target element: parent and children both allowed.
	RoleRoot Role = iota
	// RoleAncestor walks towards the document root: no children.
	RoleAncestor
	// RoleDescendant walks into a single-child chain: no parent.
	RoleDescendant
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleAncestor:
		return "ancestor"
	case RoleDescendant:
		return "descendant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Node is one element of a locator tree: a tag with its attribute
// candidates, linked to the parent chain and, for the root and
// descendants, to the single-child descendant chain. Nodes are built once
// and never mutated.
type Node struct {
	Role       Role
	Tag        string
	Attributes []Attribute
	Parent     *Node
	Children   []*Node
}

// NewNode validates the role invariant and returns the node.
func NewNode(role Role, tag string, attrs []Attribute, parent *Node, children []*Node) (*Node, error) {
	if tag == "" {
		return nil, fmt.Errorf("locator: %s node without tag", role)
	}
	for _, a := range attrs {
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("locator: %s <%s>: attribute %q has no value", role, tag, a.Name)
		}
	}
	switch role {
	case RoleRoot:
	case RoleAncestor:
		if len(children) > 0 {
			return nil, fmt.Errorf("locator: ancestor <%s> cannot have children", tag)
		}
	case RoleDescendant:
		if parent != nil {
			return nil, fmt.Errorf("locator: descendant <%s> cannot have a parent", tag)
		}
	default:
		return nil, fmt.Errorf("locator: unknown role %d", int(role))
	}
	if parent != nil && parent.Role != RoleAncestor {
		return nil, fmt.Errorf("locator: <%s> parent must be an ancestor, got %s", tag, parent.Role)
	}
	for _, c := range children {
		if c == nil || c.Role != RoleDescendant {
			return nil, fmt.Errorf("locator: <%s> children must be descendants", tag)
		}
	}
	return &Node{
		Role:       role,
		Tag:        tag,
		Attributes: attrs,
		Parent:     parent,
		Children:   children,
	}, nil
}

// Build derives the locator tree of el: el itself as root, every element
// ancestor up to the document root, and the descendant chain while each
// element has exactly one element child.
func Build(el *html.Node) (*Node, error) {
	if el == nil || el.Type != html.ElementNode {
		return nil, fmt.Errorf("locator: build: not an element")
	}
	parent, err := buildAncestors(el.Parent)
	if err != nil {
		return nil, err
	}
	children, err := buildDescendants(el)
	if err != nil {
		return nil, err
	}
	return NewNode(RoleRoot, el.Data, Attributes(el), parent, children)
}

func buildAncestors(n *html.Node) (*Node, error) {
	// Collect first, then link from the top down so each node is built
	// with its parent already in place.
	var chain []*html.Node
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		chain = append(chain, p)
	}
	var parent *Node
	for i := len(chain) - 1; i >= 0; i-- {
		el := chain[i]
		node, err := NewNode(RoleAncestor, el.Data, Attributes(el), parent, nil)
		if err != nil {
			return nil, err
		}
		parent = node
	}
	return parent, nil
}

func buildDescendants(n *html.Node) ([]*Node, error) {
	var chain []*html.Node
	for cur := n; ; {
		kids := document.ElementChildren(cur)
		if len(kids) != 1 {
			break
		}
		cur = kids[0]
		chain = append(chain, cur)
	}
	var below []*Node
	for i := len(chain) - 1; i >= 0; i-- {
		el := chain[i]
		node, err := NewNode(RoleDescendant, el.Data, Attributes(el), nil, below)
		if err != nil {
			return nil, err
		}
		below = []*Node{node}
	}
	return below, nil
}

// Depth returns the number of ancestors above n.
func (n *Node) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Equal reports structural equality of two trees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Role != b.Role || a.Tag != b.Tag || len(a.Attributes) != len(b.Attributes) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Attributes {
		if !a.Attributes[i].equal(b.Attributes[i]) {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return Equal(a.Parent, b.Parent)
}
