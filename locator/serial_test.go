package locator

import (
	"encoding/json"
	"testing"
)

func sampleTree(t *testing.T) *Node {
	t.Helper()
	_, el := element(t, `<html><body><div id="w" class="row"><a href="/x?y=1" title="it's">`+
		`<span class="ico"><i>go</i></span></a></div></body></html>`, "//a")
	tree, err := Build(el)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestPlain_RoundTrip(t *testing.T) {
	tree := sampleTree(t)

	data, err := json.Marshal(ToPlain(tree))
	if err != nil {
		t.Fatal(err)
	}
	var p Plain
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	back, err := FromPlain(&p)
	if err != nil {
		t.Fatalf("from plain: %v", err)
	}
	if !Equal(tree, back) {
		t.Errorf("round trip changed the tree:\n%s", data)
	}
}

func TestMinified_RoundTrip(t *testing.T) {
	tree := sampleTree(t)

	data, err := MarshalMinified(tree)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalMinified(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(tree, back) {
		t.Errorf("round trip changed the tree:\n%s", data)
	}

	// Expanding a minified tree gives the same expanded form.
	plain, err := json.Marshal(ToPlain(tree))
	if err != nil {
		t.Fatal(err)
	}
	var m Minified
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	expanded, err := json.Marshal(Expand(&m))
	if err != nil {
		t.Fatal(err)
	}
	if string(expanded) != string(plain) {
		t.Errorf("expand:\n got %s\nwant %s", expanded, plain)
	}
}

func TestMinified_Shape(t *testing.T) {
	data, err := MarshalMinified(sampleTree(t))
	if err != nil {
		t.Fatal(err)
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"t", "a", "p", "c"} {
		if _, ok := root[k]; !ok {
			t.Errorf("root: missing key %q in %s", k, data)
		}
	}

	var parent map[string]json.RawMessage
	if err := json.Unmarshal(root["p"], &parent); err != nil {
		t.Fatal(err)
	}
	if _, ok := parent["c"]; ok {
		t.Errorf("ancestor carries a children key: %s", root["p"])
	}

	var children []map[string]json.RawMessage
	if err := json.Unmarshal(root["c"], &children); err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 {
		t.Fatalf("children: got %d, want 1", len(children))
	}
	if _, ok := children[0]["p"]; ok {
		t.Errorf("descendant carries a parent key: %s", root["c"])
	}
}

func TestPlain_NullLinks(t *testing.T) {
	data, err := json.Marshal(ToPlain(sampleTree(t)))
	if err != nil {
		t.Fatal(err)
	}
	var root struct {
		Parent   map[string]json.RawMessage   `json:"parent"`
		Children []map[string]json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &root); err != nil {
		t.Fatal(err)
	}
	if string(root.Parent["children"]) != "null" {
		t.Errorf("ancestor children: got %s, want null", root.Parent["children"])
	}
	if len(root.Children) != 1 || string(root.Children[0]["parent"]) != "null" {
		t.Errorf("descendant parent: want null in %s", data)
	}
}

func TestFromPlain_RejectsBadRoles(t *testing.T) {
	cases := []struct{ name, src string }{
		{"ancestor with children", `{"tagName":"a","attrs":[],"parent":{"tagName":"div","attrs":[],"parent":null,"children":[]},"children":null}`},
		{"descendant with parent", `{"tagName":"a","attrs":[],"parent":null,"children":[{"tagName":"i","attrs":[],"parent":{"tagName":"b","attrs":[],"parent":null,"children":null},"children":null}]}`},
		{"null descendant", `{"tagName":"a","attrs":[],"parent":null,"children":[null]}`},
		{"empty tag", `{"tagName":"","attrs":[],"parent":null,"children":null}`},
		{"attribute without value", `{"tagName":"a","attrs":[["id",[]]],"parent":null,"children":null}`},
	}
	for _, c := range cases {
		var p Plain
		if err := json.Unmarshal([]byte(c.src), &p); err != nil {
			t.Fatalf("%s: decode: %v", c.name, err)
		}
		if _, err := FromPlain(&p); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestAttrTuple_JSON(t *testing.T) {
	data, err := json.Marshal(AttrTuple{Name: "class", Values: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["class",["a","b"]]` {
		t.Errorf("marshal: got %s", data)
	}

	for _, bad := range []string{`["id"]`, `{"id":"x"}`, `[1,["x"]]`, `["id","x"]`} {
		var tup AttrTuple
		if err := json.Unmarshal([]byte(bad), &tup); err == nil {
			t.Errorf("unmarshal %s: expected error", bad)
		}
	}
}
