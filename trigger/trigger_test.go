package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/locator"
	"github.com/hazyhaar/vind/registration"
)

const page = `<html><body>
<nav><a id="home" href="/">Home</a></nav>
<main><button id="save" class="primary">Save</button><input id="q" name="q"></main>
</body></html>`

type fakeBindings struct {
	active  []*binding.Binding
	updated map[string]string
	err     error
}

func (f *fakeBindings) ActiveBindings(_ context.Context, domain, path string) ([]*binding.Binding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return binding.Enclosing(f.active, domain, path, nil), nil
}

func (f *fakeBindings) UpdateSelector(_ context.Context, id, selector string) error {
	if f.updated == nil {
		f.updated = make(map[string]string)
	}
	f.updated[id] = selector
	return nil
}

type fakePage struct {
	url       string
	doc       *document.Document
	clicked   []*html.Node
	snapshots int
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Snapshot(context.Context) (*document.Document, error) {
	p.snapshots++
	return p.doc, nil
}

func (p *fakePage) Click(_ context.Context, el *html.Node) error {
	p.clicked = append(p.clicked, el)
	return nil
}

func fixture(t *testing.T) (*fakePage, map[string]*html.Node) {
	t.Helper()
	d, err := document.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	els := make(map[string]*html.Node)
	for _, id := range []string{"home", "save", "q"} {
		m, err := d.Evaluate(context.Background(), "//*[@id='"+id+"']")
		if err != nil || len(m) != 1 {
			t.Fatalf("evaluate %s: %v", id, err)
		}
		els[id] = m[0]
	}
	return &fakePage{url: "https://example.com/docs/intro?x=1", doc: d}, els
}

func bindingFor(t *testing.T, p *fakePage, el *html.Node, path, key string) *binding.Binding {
	t.Helper()
	res, tree, err := locator.NewResolver(p.doc, nil).ResolveElement(context.Background(), el)
	if err != nil {
		t.Fatal(err)
	}
	return binding.New("example.com", path, key, res.Selector, tree)
}

func keydown(key string, target *html.Node) registration.Event {
	return registration.Event{Type: registration.KeyDown, Key: key, Target: target}
}

func TestDispatch_Fires(t *testing.T) {
	p, els := fixture(t)
	save := bindingFor(t, p, els["save"], "docs", "s")
	fb := &fakeBindings{active: []*binding.Binding{save}}
	d := New(fb, p, nil, nil)

	got, err := d.Dispatch(context.Background(), keydown("s", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got != save {
		t.Fatalf("fired: got %v, want the save binding", got)
	}
	if len(p.clicked) != 1 || p.clicked[0] != els["save"] {
		t.Errorf("clicked: got %v", p.clicked)
	}
	if p.snapshots != 1 {
		t.Errorf("snapshots: got %d, want 1", p.snapshots)
	}
	if len(fb.updated) != 0 {
		t.Errorf("selector updated on the fast path: %v", fb.updated)
	}
}

func TestDispatch_UsesEventDocument(t *testing.T) {
	p, els := fixture(t)
	fb := &fakeBindings{active: []*binding.Binding{bindingFor(t, p, els["save"], "", "s")}}
	d := New(fb, p, nil, nil)

	ev := keydown("s", nil)
	ev.Doc = p.doc
	if _, err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if p.snapshots != 0 {
		t.Errorf("snapshots: got %d, want 0", p.snapshots)
	}
}

func TestDispatch_RefreshesStaleSelector(t *testing.T) {
	p, els := fixture(t)
	b := bindingFor(t, p, els["save"], "docs", "s")
	b.Selector = "//button[@id='gone']"
	fb := &fakeBindings{active: []*binding.Binding{b}}
	d := New(fb, p, nil, nil)

	if _, err := d.Dispatch(context.Background(), keydown("s", nil)); err != nil {
		t.Fatal(err)
	}
	if len(p.clicked) != 1 || p.clicked[0] != els["save"] {
		t.Fatalf("clicked: got %v", p.clicked)
	}
	sel, ok := fb.updated[b.ID]
	if !ok || sel == "//button[@id='gone']" {
		t.Errorf("selector not refreshed: %v", fb.updated)
	}
	if b.Selector != sel {
		t.Errorf("binding selector: got %q, want %q", b.Selector, sel)
	}
}

func TestDispatch_FallsBackToLessSpecific(t *testing.T) {
	p, els := fixture(t)
	missing := binding.New("example.com", "docs/intro", "h", "//a[@id='nowhere']", nil)
	home := bindingFor(t, p, els["home"], "", "h")
	fb := &fakeBindings{active: []*binding.Binding{missing, home}}
	d := New(fb, p, nil, nil)

	got, err := d.Dispatch(context.Background(), keydown("h", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got != home || len(p.clicked) != 1 || p.clicked[0] != els["home"] {
		t.Errorf("fired: got %v, clicked %v", got, p.clicked)
	}
}

func TestDispatch_Ignored(t *testing.T) {
	p, els := fixture(t)
	fb := &fakeBindings{active: []*binding.Binding{bindingFor(t, p, els["save"], "", "s")}}
	busy := false
	d := New(fb, p, func() bool { return busy }, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		ev   registration.Event
	}{
		{"protected target", keydown("s", els["q"])},
		{"reserved key", keydown("Enter", nil)},
		{"unbound key", keydown("x", nil)},
		{"key up", registration.Event{Type: registration.KeyUp, Key: "s"}},
		{"pointer", registration.Event{Type: registration.PointerClick}},
	}
	for _, c := range cases {
		got, err := d.Dispatch(ctx, c.ev)
		if err != nil || got != nil {
			t.Errorf("%s: got %v, %v", c.name, got, err)
		}
	}

	busy = true
	if got, _ := d.Dispatch(ctx, keydown("s", nil)); got != nil {
		t.Error("dispatch during registration should be suppressed")
	}
	if len(p.clicked) != 0 {
		t.Errorf("clicked: got %d clicks, want 0", len(p.clicked))
	}
}

func TestDispatch_OtherScope(t *testing.T) {
	p, els := fixture(t)
	fb := &fakeBindings{active: []*binding.Binding{bindingFor(t, p, els["save"], "blog", "s")}}
	d := New(fb, p, nil, nil)
	if got, _ := d.Dispatch(context.Background(), keydown("s", nil)); got != nil {
		t.Errorf("binding for another path fired: %v", got)
	}
}

func TestDispatch_Errors(t *testing.T) {
	p, _ := fixture(t)
	boom := errors.New("boom")
	d := New(&fakeBindings{err: boom}, p, nil, nil)
	if _, err := d.Dispatch(context.Background(), keydown("s", nil)); !errors.Is(err, boom) {
		t.Errorf("store error: got %v", err)
	}

	p.url = "not a url"
	if _, err := d.Dispatch(context.Background(), keydown("s", nil)); err == nil {
		t.Error("expected error for a page without host")
	}
}

type chanSource struct{ ch chan registration.Event }

func (s chanSource) Subscribe(context.Context) (<-chan registration.Event, error) { return s.ch, nil }

func TestRun(t *testing.T) {
	p, els := fixture(t)
	fb := &fakeBindings{active: []*binding.Binding{bindingFor(t, p, els["save"], "", "s")}}
	d := New(fb, p, nil, nil)

	src := chanSource{ch: make(chan registration.Event)}
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), src) }()

	src.ch <- keydown("s", nil)
	src.ch <- keydown("x", nil)
	close(src.ch)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after the source closed")
	}
	if len(p.clicked) != 1 {
		t.Errorf("clicked: got %d, want 1", len(p.clicked))
	}
}
