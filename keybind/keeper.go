// Package keybind is the vind orchestrator: it stores key bindings and
// disabled paths, serves them to the trigger and the registration flow,
// and moves them in and out of the versioned export format.
//
// Usage:
//
//	k, err := keybind.New(cfg, logger)
//	defer k.Close()
//	k.RegisterMCP(mcpServer)
//	k.RegisterHTTP(router)
package keybind

import (
	"context"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/keybind/internal/store"
	"github.com/hazyhaar/vind/transfer"
)

// Keeper is the main keybind orchestrator.
type Keeper struct {
	store  *store.Store
	parser *transfer.Parser
	logger *slog.Logger
	config *Config
}

// New creates a Keeper. Opens the SQLite database and initialises the schema.
func New(cfg *Config, logger *slog.Logger) (*Keeper, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	parser, err := transfer.NewParser(cfg.Version, cfg.ExportIndent, cfg.MinifyExport)
	if err != nil {
		return nil, fmt.Errorf("keybind: %w", err)
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &Keeper{
		store:  s,
		parser: parser,
		logger: logger,
		config: cfg,
	}, nil
}

// Close closes the database.
func (k *Keeper) Close() error {
	return k.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (k *Keeper) Store() *store.Store {
	return k.store
}

// Config returns the configuration the Keeper runs with.
func (k *Keeper) Config() *Config {
	return k.config
}

// --- Binding operations ---

// AddBinding stores a freshly registered binding. A binding already using
// the same key on the same scope is replaced.
func (k *Keeper) AddBinding(ctx context.Context, b *binding.Binding) error {
	if err := k.store.ReplaceBinding(ctx, b); err != nil {
		return fmt.Errorf("keybind: add binding: %w", err)
	}
	k.logger.Info("keybind: binding added",
		"id", b.ID, "domain", b.Domain, "path", b.Path, "key", b.Key)
	return nil
}

// UpdateBinding rewrites a stored binding.
func (k *Keeper) UpdateBinding(ctx context.Context, b *binding.Binding) error {
	return k.store.UpdateBinding(ctx, b)
}

// UpdateSelector refreshes the cached selector of a binding after its
// locator was re-resolved.
func (k *Keeper) UpdateSelector(ctx context.Context, id, selector string) error {
	if err := k.store.UpdateSelector(ctx, id, selector); err != nil {
		return err
	}
	k.logger.Debug("keybind: selector refreshed", "id", id, "selector", selector)
	return nil
}

// GetBinding retrieves a binding by ID, nil when absent.
func (k *Keeper) GetBinding(ctx context.Context, id string) (*binding.Binding, error) {
	return k.store.GetBinding(ctx, id)
}

// ListBindings returns every binding.
func (k *Keeper) ListBindings(ctx context.Context) ([]*binding.Binding, error) {
	return k.store.ListBindings(ctx)
}

// BindingsForDomain returns the bindings of one domain.
func (k *Keeper) BindingsForDomain(ctx context.Context, domain string) ([]*binding.Binding, error) {
	return k.store.ListBindingsByDomain(ctx, domain)
}

// BindingsForSite returns the bindings of domain whose path encloses site,
// most specific first.
func (k *Keeper) BindingsForSite(ctx context.Context, domain, site string) ([]*binding.Binding, error) {
	return k.store.ListBindingsForSite(ctx, domain, site)
}

// ActiveBindings returns the bindings that fire on domain+path: those
// enclosing the path whose own scope is not disabled.
func (k *Keeper) ActiveBindings(ctx context.Context, domain, path string) ([]*binding.Binding, error) {
	bs, err := k.store.ListBindingsForSite(ctx, domain, path)
	if err != nil {
		return nil, err
	}
	disabled, err := k.store.DisabledSet(ctx)
	if err != nil {
		return nil, err
	}
	return binding.Enclosing(bs, domain, path, disabled), nil
}

// RemoveBinding deletes a binding. It reports whether it existed.
func (k *Keeper) RemoveBinding(ctx context.Context, id string) (bool, error) {
	ok, err := k.store.DeleteBinding(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		k.logger.Info("keybind: binding removed", "id", id)
	}
	return ok, nil
}

// ChangeKey rebinds a binding to key. It reports whether the binding
// exists.
func (k *Keeper) ChangeKey(ctx context.Context, id, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("keybind: change key: empty key")
	}
	ok, err := k.store.ChangeKey(ctx, id, key)
	if err != nil {
		return false, fmt.Errorf("keybind: change key: %w", err)
	}
	if ok {
		k.logger.Info("keybind: key changed", "id", id, "key", key)
	}
	return ok, nil
}

// MoveBindings moves the bindings of domain from one path to another,
// carrying the disabled state of the path along.
func (k *Keeper) MoveBindings(ctx context.Context, domain, from, to string) (int64, error) {
	from, to = binding.SanitizePath(from), binding.SanitizePath(to)
	n, err := k.store.MovePath(ctx, domain, from, to)
	if err != nil {
		return 0, fmt.Errorf("keybind: move bindings: %w", err)
	}
	k.logger.Info("keybind: bindings moved", "domain", domain, "from", from, "to", to, "count", n)
	return n, nil
}

// DeleteAll removes every binding.
func (k *Keeper) DeleteAll(ctx context.Context) error {
	if err := k.store.DeleteAllBindings(ctx); err != nil {
		return err
	}
	k.logger.Info("keybind: all bindings deleted")
	return nil
}

// --- Disabled paths ---

// DisablePath stops the bindings of domain+path from firing.
func (k *Keeper) DisablePath(ctx context.Context, domain, path string) error {
	return k.store.AddDisabledPath(ctx, domain, binding.SanitizePath(path))
}

// EnablePath undoes DisablePath.
func (k *Keeper) EnablePath(ctx context.Context, domain, path string) error {
	return k.store.RemoveDisabledPath(ctx, domain, binding.SanitizePath(path))
}

// TogglePath flips domain+path and returns whether it is now disabled.
func (k *Keeper) TogglePath(ctx context.Context, domain, path string) (bool, error) {
	path = binding.SanitizePath(path)
	disabled, err := k.store.ToggleDisabledPath(ctx, domain, path)
	if err != nil {
		return false, err
	}
	k.logger.Info("keybind: path toggled", "domain", domain, "path", path, "disabled", disabled)
	return disabled, nil
}

// RenamePath moves the disabled entry of domain+from to domain+to.
func (k *Keeper) RenamePath(ctx context.Context, domain, from, to string) error {
	return k.store.RenameDisabledPath(ctx, domain, binding.SanitizePath(from), binding.SanitizePath(to))
}

// DisabledPaths returns the disabled entries at or below domain+path.
func (k *Keeper) DisabledPaths(ctx context.Context, domain, path string) ([]string, error) {
	return k.store.QueryDisabledPaths(ctx, domain, binding.SanitizePath(path))
}

// ListDisabledPaths returns every disabled entry.
func (k *Keeper) ListDisabledPaths(ctx context.Context) ([]string, error) {
	return k.store.ListDisabledPaths(ctx)
}

// --- Export / import ---

// Export serialises every binding and disabled path in the running
// version's format.
func (k *Keeper) Export(ctx context.Context) ([]byte, error) {
	bs, err := k.store.ListBindings(ctx)
	if err != nil {
		return nil, fmt.Errorf("keybind: export: %w", err)
	}
	disabled, err := k.store.ListDisabledPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("keybind: export: %w", err)
	}
	data, err := k.parser.Serialize(transfer.NewPayload(bs, disabled))
	if err != nil {
		return nil, err
	}
	k.logger.Info("keybind: exported", "bindings", len(bs), "disabled_paths", len(disabled),
		"version", k.config.Version)
	return data, nil
}

// ImportResult summarises an applied import.
type ImportResult struct {
	Version       string `json:"version"`
	Bindings      int    `json:"bindings"`
	DisabledPaths int    `json:"disabled_paths"`
}

// Import validates data and applies it in one transaction. An invalid or
// incompatible payload changes nothing; the error is a
// *transfer.InvalidPayloadError or a *transfer.VersionError.
func (k *Keeper) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	payload, err := k.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bs, err := payload.Decode()
	if err != nil {
		return nil, &transfer.InvalidPayloadError{Reason: "locator", Err: err}
	}
	for _, b := range bs {
		if err := b.Validate(); err != nil {
			return nil, &transfer.InvalidPayloadError{Reason: "binding", Err: err}
		}
	}
	if err := k.store.Import(ctx, bs, payload.DisabledPaths); err != nil {
		return nil, fmt.Errorf("keybind: import: %w", err)
	}

	res := &ImportResult{
		Version:       payload.VindVersion,
		Bindings:      len(bs),
		DisabledPaths: len(payload.DisabledPaths),
	}
	k.logger.Info("keybind: imported", "version", res.Version,
		"bindings", res.Bindings, "disabled_paths", res.DisabledPaths)
	return res, nil
}

// --- Stats ---

// Stats holds keeper statistics.
type Stats struct {
	Bindings      int `json:"bindings"`
	Domains       int `json:"domains"`
	DisabledPaths int `json:"disabled_paths"`
}

// Stats returns keeper statistics.
func (k *Keeper) Stats(ctx context.Context) (*Stats, error) {
	bs, err := k.store.ListBindings(ctx)
	if err != nil {
		return nil, err
	}
	disabled, err := k.store.ListDisabledPaths(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Bindings:      len(bs),
		Domains:       len(binding.ByScope(bs)),
		DisabledPaths: len(disabled),
	}, nil
}
