package keybind

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/locator"
	"github.com/hazyhaar/vind/registration"
	"github.com/hazyhaar/vind/transfer"
)

// Keeper must satisfy the registration flow's persistence collaborator.
var _ registration.Persister = (*Keeper)(nil)

func testKeeper(t *testing.T, version string) *Keeper {
	t.Helper()
	k, err := New(&Config{DBPath: ":memory:", Version: version, MinifyExport: true, ExportIndent: 2}, slog.Default())
	if err != nil {
		t.Fatalf("new keeper: %v", err)
	}
	t.Cleanup(func() { k.Close() })
	return k
}

func resolvedBinding(t *testing.T, domain, path, key string) *binding.Binding {
	t.Helper()
	d, err := document.ParseString(`<html><body><header><a href="/search" id="search">Search</a></header></body></html>`)
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
	return binding.New(domain, path, key, res.Selector, tree)
}

func TestNew_BadVersion(t *testing.T) {
	if _, err := New(&Config{DBPath: ":memory:", Version: "3.1"}, nil); err == nil {
		t.Fatal("expected error for a non-semver version")
	}
}

func TestAddBinding_ReplacesSameKeyOnScope(t *testing.T) {
	k := testKeeper(t, DefaultVersion)
	ctx := context.Background()

	first := resolvedBinding(t, "example.com", "docs", "s")
	second := resolvedBinding(t, "example.com", "docs", "s")
	if err := k.AddBinding(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := k.AddBinding(ctx, second); err != nil {
		t.Fatal(err)
	}
	all, err := k.ListBindings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != second.ID {
		t.Fatalf("bindings: got %d, want only the second", len(all))
	}
}

func TestActiveBindings_SkipsDisabled(t *testing.T) {
	k := testKeeper(t, DefaultVersion)
	ctx := context.Background()

	root := resolvedBinding(t, "example.com", "", "r")
	docs := resolvedBinding(t, "example.com", "docs", "d")
	other := resolvedBinding(t, "example.org", "docs", "o")
	for _, b := range []*binding.Binding{root, docs, other} {
		if err := k.AddBinding(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	active, err := k.ActiveBindings(ctx, "example.com", "docs/intro")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active: got %d, want 2", len(active))
	}

	if err := k.DisablePath(ctx, "example.com", "/docs"); err != nil {
		t.Fatal(err)
	}
	active, _ = k.ActiveBindings(ctx, "example.com", "docs/intro")
	if len(active) != 1 || active[0].ID != root.ID {
		t.Fatalf("active after disabling docs: got %v", active)
	}

	if err := k.EnablePath(ctx, "example.com", "docs"); err != nil {
		t.Fatal(err)
	}
	active, _ = k.ActiveBindings(ctx, "example.com", "docs/intro")
	if len(active) != 2 {
		t.Errorf("active after enabling: got %d, want 2", len(active))
	}
}

func TestMoveBindings_CarriesDisabledPath(t *testing.T) {
	k := testKeeper(t, DefaultVersion)
	ctx := context.Background()

	if err := k.AddBinding(ctx, resolvedBinding(t, "example.com", "old", "k")); err != nil {
		t.Fatal(err)
	}
	if _, err := k.TogglePath(ctx, "example.com", "old"); err != nil {
		t.Fatal(err)
	}

	n, err := k.MoveBindings(ctx, "example.com", "/old", "/new")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("moved: got %d, want 1", n)
	}
	dps, _ := k.ListDisabledPaths(ctx)
	if len(dps) != 1 || dps[0] != "example.com/new" {
		t.Errorf("disabled paths: got %v", dps)
	}
	bs, _ := k.BindingsForSite(ctx, "example.com", "new")
	if len(bs) != 1 {
		t.Errorf("bindings at new path: got %d", len(bs))
	}
}

func TestChangeKey(t *testing.T) {
	k := testKeeper(t, DefaultVersion)
	ctx := context.Background()
	b := resolvedBinding(t, "example.com", "", "a")
	if err := k.AddBinding(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := k.ChangeKey(ctx, b.ID, ""); err == nil {
		t.Error("expected error for empty key")
	}
	ok, err := k.ChangeKey(ctx, b.ID, "z")
	if err != nil || !ok {
		t.Fatalf("change key: %v, %v", ok, err)
	}
	got, _ := k.GetBinding(ctx, b.ID)
	if got.Key != "z" {
		t.Errorf("Key: got %q, want z", got.Key)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := testKeeper(t, DefaultVersion)
	ctx := context.Background()
	b := resolvedBinding(t, "example.com", "docs", "s")
	if err := src.AddBinding(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := src.DisablePath(ctx, "example.com", "blog"); err != nil {
		t.Fatal(err)
	}

	data, err := src.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"vindVersion": "3.1.0"`) {
		t.Fatalf("export lacks version:\n%s", data)
	}

	dst := testKeeper(t, "3.4.0")
	res, err := dst.Import(ctx, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Bindings != 1 || res.DisabledPaths != 1 || res.Version != "3.1.0" {
		t.Errorf("result: got %+v", res)
	}
	got, _ := dst.GetBinding(ctx, b.ID)
	if got == nil || !locator.Equal(got.Locator, b.Locator) || got.Selector != b.Selector {
		t.Fatalf("imported binding: got %+v", got)
	}
	stats, _ := dst.Stats(ctx)
	if stats.Bindings != 1 || stats.Domains != 1 || stats.DisabledPaths != 1 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestImport_RejectsWithoutChanges(t *testing.T) {
	k := testKeeper(t, "2.1.0")
	ctx := context.Background()

	newer := testKeeper(t, "3.0.0")
	if err := newer.AddBinding(ctx, resolvedBinding(t, "example.com", "", "k")); err != nil {
		t.Fatal(err)
	}
	data, err := newer.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = k.Import(ctx, data)
	var ve *transfer.VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *transfer.VersionError, got %v", err)
	}

	invalid := `{"bindings":[{"id":"1","domain":"","path":"","key":"k","selector":"//a","xpathObject":null}],"vindVersion":"2.0.0"}`
	_, err = k.Import(ctx, []byte(invalid))
	var ipe *transfer.InvalidPayloadError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected *transfer.InvalidPayloadError, got %v", err)
	}

	n, _ := k.Store().CountBindings(ctx)
	if n != 0 {
		t.Errorf("bindings after rejected imports: got %d, want 0", n)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vind.yaml")
	data := "db_path: /tmp/x.db\nexport_indent: 0\nregistration:\n  throttle: 50ms\nhttp:\n  addr: :9000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.HTTP.Addr != ":9000" {
		t.Errorf("config: got %+v", cfg)
	}
	if cfg.Version != DefaultVersion || !cfg.MinifyExport || cfg.ExportIndent != 0 {
		t.Errorf("defaults: got version %q minify %v indent %d", cfg.Version, cfg.MinifyExport, cfg.ExportIndent)
	}
	if cfg.Registration.Throttle.Milliseconds() != 50 {
		t.Errorf("throttle: got %v", cfg.Registration.Throttle)
	}

	def := NewConfig()
	if def.DBPath != "vind.db" || def.ExportIndent != 2 || def.HTTP.Addr != "127.0.0.1:8794" {
		t.Errorf("NewConfig: got %+v", def)
	}
}
