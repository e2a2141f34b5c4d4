package locator

import (
	"encoding/json"
	"fmt"
)

// AttrTuple is the wire form of an Attribute: ["name", ["v1", "v2"]].
type AttrTuple struct {
	Name   string
	Values []string
}

// MarshalJSON encodes the tuple as a two-element array.
func (t AttrTuple) MarshalJSON() ([]byte, error) {
	values := t.Values
	if values == nil {
		values = []string{}
	}
	return json.Marshal([2]any{t.Name, values})
}

// UnmarshalJSON decodes a two-element array.
func (t *AttrTuple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("locator: attribute tuple: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("locator: attribute tuple: got %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &t.Name); err != nil {
		return fmt.Errorf("locator: attribute name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &t.Values); err != nil {
		return fmt.Errorf("locator: attribute values: %w", err)
	}
	return nil
}

// Plain is the expanded wire shape. Ancestors carry children: null and
// descendants carry parent: null.
type Plain struct {
	TagName  string      `json:"tagName"`
	Attrs    []AttrTuple `json:"attrs"`
	Parent   *Plain      `json:"parent"`
	Children []*Plain    `json:"children"`
}

// Minified is the single-letter wire shape of a root node.
type Minified struct {
	T string           `json:"t"`
	A []AttrTuple      `json:"a"`
	P *MinifiedParent  `json:"p"`
	C []*MinifiedChild `json:"c"`
}

// MinifiedParent is an ancestor in the minified shape; it has no "c" key.
type MinifiedParent struct {
	T string          `json:"t"`
	A []AttrTuple     `json:"a"`
	P *MinifiedParent `json:"p"`
}

// MinifiedChild is a descendant in the minified shape; it has no "p" key.
type MinifiedChild struct {
	T string           `json:"t"`
	A []AttrTuple      `json:"a"`
	C []*MinifiedChild `json:"c"`
}

func toTuples(attrs []Attribute) []AttrTuple {
	out := make([]AttrTuple, len(attrs))
	for i, a := range attrs {
		out[i] = AttrTuple{Name: a.Name, Values: append([]string(nil), a.Values...)}
	}
	return out
}

func fromTuples(tuples []AttrTuple) []Attribute {
	if len(tuples) == 0 {
		return nil
	}
	out := make([]Attribute, len(tuples))
	for i, t := range tuples {
		out[i] = Attribute{Name: t.Name, Values: append([]string(nil), t.Values...)}
	}
	return out
}

// ToPlain converts a tree to its expanded wire shape.
func ToPlain(n *Node) *Plain {
	if n == nil {
		return nil
	}
	p := &Plain{TagName: n.Tag, Attrs: toTuples(n.Attributes)}
	if n.Parent != nil {
		p.Parent = ToPlain(n.Parent)
	}
	if len(n.Children) > 0 {
		p.Children = make([]*Plain, len(n.Children))
		for i, c := range n.Children {
			p.Children[i] = ToPlain(c)
		}
	}
	return p
}

// FromPlain rebuilds a tree from its expanded wire shape, checking that
// ancestors have no children and descendants no parent.
func FromPlain(p *Plain) (*Node, error) {
	if p == nil {
		return nil, fmt.Errorf("locator: from plain: nil node")
	}
	parent, err := plainAncestor(p.Parent)
	if err != nil {
		return nil, err
	}
	children, err := plainDescendants(p.Children)
	if err != nil {
		return nil, err
	}
	return NewNode(RoleRoot, p.TagName, fromTuples(p.Attrs), parent, children)
}

func plainAncestor(p *Plain) (*Node, error) {
	if p == nil {
		return nil, nil
	}
	if p.Children != nil {
		return nil, fmt.Errorf("locator: ancestor <%s> carries children", p.TagName)
	}
	parent, err := plainAncestor(p.Parent)
	if err != nil {
		return nil, err
	}
	return NewNode(RoleAncestor, p.TagName, fromTuples(p.Attrs), parent, nil)
}

func plainDescendants(ps []*Plain) ([]*Node, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	out := make([]*Node, len(ps))
	for i, p := range ps {
		if p == nil {
			return nil, fmt.Errorf("locator: null descendant")
		}
		if p.Parent != nil {
			return nil, fmt.Errorf("locator: descendant <%s> carries a parent", p.TagName)
		}
		below, err := plainDescendants(p.Children)
		if err != nil {
			return nil, err
		}
		node, err := NewNode(RoleDescendant, p.TagName, fromTuples(p.Attrs), nil, below)
		if err != nil {
			return nil, err
		}
		out[i] = node
	}
	return out, nil
}

// Minify renames the expanded shape to single-letter keys.
func Minify(p *Plain) *Minified {
	if p == nil {
		return nil
	}
	m := &Minified{T: p.TagName, A: p.Attrs, P: minifyParent(p.Parent)}
	if p.Children != nil {
		m.C = minifyChildren(p.Children)
	}
	return m
}

func minifyParent(p *Plain) *MinifiedParent {
	if p == nil {
		return nil
	}
	return &MinifiedParent{T: p.TagName, A: p.Attrs, P: minifyParent(p.Parent)}
}

func minifyChildren(ps []*Plain) []*MinifiedChild {
	if ps == nil {
		return nil
	}
	out := make([]*MinifiedChild, len(ps))
	for i, p := range ps {
		out[i] = &MinifiedChild{T: p.TagName, A: p.Attrs, C: minifyChildren(p.Children)}
	}
	return out
}

// Expand is the inverse of Minify.
func Expand(m *Minified) *Plain {
	if m == nil {
		return nil
	}
	p := &Plain{TagName: m.T, Attrs: m.A, Parent: expandParent(m.P)}
	if m.C != nil {
		p.Children = expandChildren(m.C)
	}
	return p
}

func expandParent(m *MinifiedParent) *Plain {
	if m == nil {
		return nil
	}
	return &Plain{TagName: m.T, Attrs: m.A, Parent: expandParent(m.P)}
}

func expandChildren(ms []*MinifiedChild) []*Plain {
	if ms == nil {
		return nil
	}
	out := make([]*Plain, len(ms))
	for i, m := range ms {
		out[i] = &Plain{TagName: m.T, Attrs: m.A, Children: expandChildren(m.C)}
	}
	return out
}

// MarshalMinified encodes a tree in the minified shape, the storage form.
func MarshalMinified(n *Node) ([]byte, error) {
	return json.Marshal(Minify(ToPlain(n)))
}

// UnmarshalMinified decodes the storage form.
func UnmarshalMinified(data []byte) (*Node, error) {
	var m Minified
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("locator: decode: %w", err)
	}
	return FromPlain(Expand(&m))
}
