package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/locator"
)

func sampleBinding(t *testing.T) *binding.Binding {
	t.Helper()
	d, err := document.ParseString(`<html><body><nav id="top"><a href="/docs?x=1" class="nav-link"><span>Docs</span></a></nav></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	els, err := d.Evaluate(context.Background(), "//a")
	if err != nil || len(els) != 1 {
		t.Fatalf("evaluate: %v", err)
	}
	res, tree, err := locator.NewResolver(d, nil).ResolveElement(context.Background(), els[0])
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return binding.New("example.com", "docs", "d", res.Selector, tree)
}

func mustParser(t *testing.T, ver string, indent int, minify bool) *Parser {
	t.Helper()
	p, err := NewParser(ver, indent, minify)
	if err != nil {
		t.Fatalf("parser %s: %v", ver, err)
	}
	return p
}

func TestImport_OlderMinorExpanded(t *testing.T) {
	b := sampleBinding(t)
	old := mustParser(t, "2.3.0", 2, true)
	data, err := old.Serialize(NewPayload([]*binding.Binding{b}, []string{"example.com/blog"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"xpathObject"`) || !strings.Contains(string(data), `"vindVersion": "2.3.0"`) {
		t.Fatalf("2.x export is not expanded:\n%s", data)
	}

	payload, err := mustParser(t, "2.9.0", 2, true).Parse(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if payload.VindVersion != "2.3.0" || len(payload.Bindings) != 1 {
		t.Fatalf("payload: got %+v", payload)
	}
	if len(payload.DisabledPaths) != 1 || payload.DisabledPaths[0] != "example.com/blog" {
		t.Errorf("disabled paths: got %v", payload.DisabledPaths)
	}

	got, err := payload.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != b.ID || got[0].Key != "d" || got[0].Selector != b.Selector || got[0].Path != "docs" {
		t.Errorf("binding: got %+v", got[0])
	}
	if !locator.Equal(got[0].Locator, b.Locator) {
		t.Error("locator tree changed")
	}
}

func TestImport_NewerMajorRejected(t *testing.T) {
	data, err := mustParser(t, "3.0.0", 0, true).Serialize(NewPayload([]*binding.Binding{sampleBinding(t)}, nil))
	if err != nil {
		t.Fatal(err)
	}

	_, err = mustParser(t, "2.1.0", 0, true).Parse(data)
	var ve *VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *VersionError, got %v", err)
	}
	if ve.Payload != "3.0.0" || ve.Running != "2.1.0" {
		t.Errorf("version error: got %+v", ve)
	}
}

func TestRoundTrip_Minified(t *testing.T) {
	b := sampleBinding(t)
	p := mustParser(t, "3.1.0", 0, true)
	data, err := p.Serialize(NewPayload([]*binding.Binding{b}, nil))
	if err != nil {
		t.Fatal(err)
	}

	var raw struct {
		Bindings []map[string]json.RawMessage `json:"bindings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"i", "d", "p", "k", "s", "x"} {
		if _, ok := raw.Bindings[0][k]; !ok {
			t.Errorf("minified binding lacks %q: %s", k, data)
		}
	}
	if strings.Contains(string(data), "tagName") || strings.Contains(string(data), "\n") {
		t.Errorf("not a compact minified payload:\n%s", data)
	}

	payload, err := p.Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := payload.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != b.ID || !locator.Equal(got[0].Locator, b.Locator) {
		t.Errorf("round trip: got %+v", got[0])
	}
}

func TestParse_ExpandedFallbackAtV3(t *testing.T) {
	b := sampleBinding(t)
	data, err := mustParser(t, "3.1.0", 2, false).Serialize(NewPayload([]*binding.Binding{b}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  ") || !strings.Contains(string(data), `"tagName"`) {
		t.Fatalf("expected an indented expanded payload:\n%s", data)
	}

	payload, err := mustParser(t, "3.2.0", 2, true).Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.Bindings[0].Selector != b.Selector {
		t.Errorf("selector: got %s", payload.Bindings[0].Selector)
	}
}

func TestParse_NullLocator(t *testing.T) {
	src := `{"bindings":[{"id":"1","domain":"a.com","path":"","key":"k","selector":"//a"}],"vindVersion":"1.0.0"}`
	payload, err := mustParser(t, "3.1.0", 2, true).Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bs, err := payload.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if bs[0].Locator != nil || bs[0].Selector != "//a" {
		t.Errorf("binding: got %+v", bs[0])
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct{ name, src string }{
		{"malformed", `{"bindings":[`},
		{"not an object", `[1,2]`},
		{"missing version", `{"bindings":[]}`},
		{"short version", `{"bindings":[],"vindVersion":"3.0"}`},
		{"missing key", `{"bindings":[{"id":"1","domain":"a","path":"","selector":"//a"}],"vindVersion":"2.0.0"}`},
		{"bad tuple", `{"bindings":[{"id":"1","domain":"a","path":"","key":"k","selector":"//a",` +
			`"xpathObject":{"tagName":"a","attrs":[["id"]],"parent":null,"children":null}}],"vindVersion":"2.0.0"}`},
		{"ancestor with children", `{"bindings":[{"id":"1","domain":"a","path":"","key":"k","selector":"//a",` +
			`"xpathObject":{"tagName":"a","attrs":[],"parent":{"tagName":"p","attrs":[],"parent":null,"children":[]},"children":null}}],"vindVersion":"2.0.0"}`},
		{"empty attribute values", `{"bindings":[{"i":"1","d":"a","p":"","k":"k","s":"//a",` +
			`"x":{"t":"a","a":[["id",[]]],"p":null,"c":null}}],"vindVersion":"3.0.0"}`},
		{"bad disabled paths", `{"bindings":[],"disabledPaths":[1],"vindVersion":"2.0.0"}`},
	}
	p := mustParser(t, "3.1.0", 2, true)
	for _, c := range cases {
		_, err := p.Parse([]byte(c.src))
		var ipe *InvalidPayloadError
		if !errors.As(err, &ipe) {
			t.Errorf("%s: expected *InvalidPayloadError, got %v", c.name, err)
		}
	}
}

func TestNewParser_BadVersion(t *testing.T) {
	for _, v := range []string{"", "3", "3.1", "v3.1.0", "three"} {
		if _, err := NewParser(v, 2, true); err == nil {
			t.Errorf("NewParser(%q): expected error", v)
		}
	}
}

func TestSerialize_EmptyPayload(t *testing.T) {
	data, err := mustParser(t, "3.1.0", 0, true).Serialize(&Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"bindings":[],"vindVersion":"3.1.0"}` {
		t.Errorf("got %s", data)
	}
}
