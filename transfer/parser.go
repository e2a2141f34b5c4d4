package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// shape is one wire layout of the payload.
type shape int

const (
	shapeExpanded shape = iota
	shapeMinified
)

func (s shape) String() string {
	if s == shapeMinified {
		return "minified"
	}
	return "expanded"
}

// dispatch maps version ranges to the shapes a payload of that version may
// use, tried in order. The first matching range wins.
var dispatch = []struct {
	constraint string
	shapes     []shape
}{
	{">= 3.0.0", []shape{shapeMinified, shapeExpanded}},
	{"< 3.0.0", []shape{shapeExpanded}},
}

// Parser reads and writes payloads on behalf of a running version.
type Parser struct {
	Version string // running version, strict semver
	Indent  int    // spaces per level when serialising; 0 for compact
	Minify  bool   // write single-letter keys when the version allows it

	running *version.Version
}

// NewParser validates ver and returns a Parser.
func NewParser(ver string, indent int, minify bool) (*Parser, error) {
	v, err := parseVersion(ver)
	if err != nil {
		return nil, err
	}
	return &Parser{Version: ver, Indent: indent, Minify: minify, running: v}, nil
}

func parseVersion(s string) (*version.Version, error) {
	sc, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("transfer: load schemas: %w", err)
	}
	if err := sc.version.Validate(map[string]any{"vindVersion": s}); err != nil {
		return nil, &InvalidPayloadError{Reason: fmt.Sprintf("version %q", s), Err: err}
	}
	v, err := version.NewSemver(s)
	if err != nil {
		return nil, &InvalidPayloadError{Reason: fmt.Sprintf("version %q", s), Err: err}
	}
	return v, nil
}

func shapesFor(v *version.Version) ([]shape, error) {
	for _, d := range dispatch {
		c, err := version.NewConstraint(d.constraint)
		if err != nil {
			return nil, err
		}
		if c.Check(v) {
			return d.shapes, nil
		}
	}
	return nil, fmt.Errorf("no payload shape for version %s", v)
}

// Parse validates and decodes data. Nothing is returned unless the whole
// payload is valid.
func (p *Parser) Parse(data []byte) (*Payload, error) {
	sc, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("transfer: load schemas: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, &InvalidPayloadError{Reason: "malformed json", Err: err}
	}
	if err := sc.version.Validate(instance); err != nil {
		return nil, &InvalidPayloadError{Reason: "version", Err: err}
	}
	payloadVersion := instance.(map[string]any)["vindVersion"].(string)

	pv, err := version.NewSemver(payloadVersion)
	if err != nil {
		return nil, &InvalidPayloadError{Reason: "version", Err: err}
	}
	if pv.Segments()[0] > p.running.Segments()[0] {
		return nil, &VersionError{Payload: payloadVersion, Running: p.Version}
	}

	shapes, err := shapesFor(pv)
	if err != nil {
		return nil, &InvalidPayloadError{Reason: "version", Err: err}
	}

	var errs []error
	for _, s := range shapes {
		payload, err := decode(sc, s, instance, data)
		if err == nil {
			return payload, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s, err))
	}
	return nil, &InvalidPayloadError{Reason: "schema", Err: errors.Join(errs...)}
}

func decode(sc *schemas, s shape, instance any, data []byte) (*Payload, error) {
	var payload *Payload
	switch s {
	case shapeMinified:
		if err := sc.minified.Validate(instance); err != nil {
			return nil, err
		}
		var m minifiedPayload
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		payload = expand(&m)
	default:
		if err := sc.expanded.Validate(instance); err != nil {
			return nil, err
		}
		payload = &Payload{}
		if err := json.Unmarshal(data, payload); err != nil {
			return nil, err
		}
	}
	if _, err := payload.Decode(); err != nil {
		return nil, err
	}
	return payload, nil
}

// Serialize writes payload in the running version's shape, stamping the
// running version.
func (p *Parser) Serialize(payload *Payload) ([]byte, error) {
	out := *payload
	out.VindVersion = p.Version
	if out.Bindings == nil {
		out.Bindings = []BindingPayload{}
	}

	shapes, err := shapesFor(p.running)
	if err != nil {
		return nil, fmt.Errorf("transfer: serialize: %w", err)
	}
	var v any = &out
	if p.Minify && shapes[0] == shapeMinified {
		v = minify(&out)
	}
	if p.Indent > 0 {
		return json.MarshalIndent(v, "", strings.Repeat(" ", p.Indent))
	}
	return json.Marshal(v)
}
