// Package transfer reads and writes the export/import payload: every
// binding with its locator tree, the disabled paths, and the version of the
// program that wrote it.
//
// Payloads from version 3.0.0 on are written with single-letter keys
// (minified); older ones use the expanded field names. Parsing picks the
// shape from the payload's own version through a small dispatch table,
// validates it against a JSON schema, and rejects payloads written by a
// newer major version.
package transfer

import (
	"fmt"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/locator"
)

// Payload is the in-memory, expanded form of an export.
type Payload struct {
	Bindings      []BindingPayload `json:"bindings"`
	DisabledPaths []string         `json:"disabledPaths,omitempty"`
	VindVersion   string           `json:"vindVersion"`
}

// BindingPayload is one exported binding.
type BindingPayload struct {
	ID          string         `json:"id"`
	Domain      string         `json:"domain"`
	Path        string         `json:"path"`
	Key         string         `json:"key"`
	Selector    string         `json:"selector"`
	XPathObject *locator.Plain `json:"xpathObject"`
}

type minifiedPayload struct {
	Bindings      []minifiedBinding `json:"bindings"`
	DisabledPaths []string          `json:"disabledPaths,omitempty"`
	VindVersion   string            `json:"vindVersion"`
}

type minifiedBinding struct {
	I string            `json:"i"`
	D string            `json:"d"`
	P string            `json:"p"`
	K string            `json:"k"`
	S string            `json:"s"`
	X *locator.Minified `json:"x"`
}

// NewPayload builds an export of bs and disabled.
func NewPayload(bs []*binding.Binding, disabled []string) *Payload {
	p := &Payload{
		Bindings:      make([]BindingPayload, 0, len(bs)),
		DisabledPaths: disabled,
	}
	for _, b := range bs {
		p.Bindings = append(p.Bindings, FromBinding(b))
	}
	return p
}

// FromBinding converts a stored binding to its payload form.
func FromBinding(b *binding.Binding) BindingPayload {
	return BindingPayload{
		ID:          b.ID,
		Domain:      b.Domain,
		Path:        b.Path,
		Key:         b.Key,
		Selector:    b.Selector,
		XPathObject: locator.ToPlain(b.Locator),
	}
}

// Binding converts the payload back, rebuilding and validating the locator
// tree.
func (bp BindingPayload) Binding() (*binding.Binding, error) {
	var tree *locator.Node
	if bp.XPathObject != nil {
		t, err := locator.FromPlain(bp.XPathObject)
		if err != nil {
			return nil, fmt.Errorf("transfer: binding %s: %w", bp.ID, err)
		}
		tree = t
	}
	return &binding.Binding{
		ID:       bp.ID,
		Domain:   bp.Domain,
		Path:     bp.Path,
		Key:      bp.Key,
		Selector: bp.Selector,
		Locator:  tree,
	}, nil
}

// Decode converts every binding of p.
func (p *Payload) Decode() ([]*binding.Binding, error) {
	out := make([]*binding.Binding, 0, len(p.Bindings))
	for _, bp := range p.Bindings {
		b, err := bp.Binding()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func minify(p *Payload) *minifiedPayload {
	m := &minifiedPayload{
		Bindings:      make([]minifiedBinding, len(p.Bindings)),
		DisabledPaths: p.DisabledPaths,
		VindVersion:   p.VindVersion,
	}
	for i, b := range p.Bindings {
		m.Bindings[i] = minifiedBinding{
			I: b.ID,
			D: b.Domain,
			P: b.Path,
			K: b.Key,
			S: b.Selector,
			X: locator.Minify(b.XPathObject),
		}
	}
	return m
}

func expand(m *minifiedPayload) *Payload {
	p := &Payload{
		Bindings:      make([]BindingPayload, len(m.Bindings)),
		DisabledPaths: m.DisabledPaths,
		VindVersion:   m.VindVersion,
	}
	for i, b := range m.Bindings {
		p.Bindings[i] = BindingPayload{
			ID:          b.I,
			Domain:      b.D,
			Path:        b.P,
			Key:         b.K,
			Selector:    b.S,
			XPathObject: locator.Expand(b.X),
		}
	}
	return p
}
