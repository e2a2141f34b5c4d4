// Package trigger fires bindings: on a qualifying keydown it finds the
// bindings of the current page for that key, locates the bound element and
// clicks it.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/document"
	"github.com/hazyhaar/vind/registration"
)

// Bindings looks up and refreshes stored bindings.
type Bindings interface {
	ActiveBindings(ctx context.Context, domain, path string) ([]*binding.Binding, error)
	UpdateSelector(ctx context.Context, id, selector string) error
}

// Page is the live page bindings fire on.
type Page interface {
	URL() string
	Snapshot(ctx context.Context) (*document.Document, error)
	Click(ctx context.Context, el *html.Node) error
}

// Dispatcher maps keydowns to clicks.
type Dispatcher struct {
	bindings Bindings
	page     Page
	busy     func() bool
	logger   *slog.Logger
}

// New creates a Dispatcher. busy, when non-nil, suppresses dispatch while
// it returns true (a registration is running).
func New(bindings Bindings, page Page, busy func() bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Dispatcher{bindings: bindings, page: page, busy: busy, logger: logger}
}

// Dispatch handles one event. It returns the binding that fired, or nil
// when the event fires nothing. Bindings whose element cannot be found are
// skipped in favour of the next, less specific, binding for the key.
func (d *Dispatcher) Dispatch(ctx context.Context, ev registration.Event) (*binding.Binding, error) {
	if ev.Type != registration.KeyDown || !registration.QualifyingKey(ev.Key, ev.Target) {
		return nil, nil
	}
	if d.busy() {
		return nil, nil
	}

	domain, path, err := binding.SplitURL(d.page.URL())
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	active, err := d.bindings.ActiveBindings(ctx, domain, path)
	if err != nil {
		return nil, fmt.Errorf("trigger: bindings: %w", err)
	}
	var candidates []*binding.Binding
	for _, b := range active {
		if b.Key == ev.Key {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	doc := ev.Doc
	if doc == nil {
		if doc, err = d.page.Snapshot(ctx); err != nil {
			return nil, fmt.Errorf("trigger: snapshot: %w", err)
		}
	}

	for _, b := range candidates {
		el, selector, err := binding.Locate(ctx, doc, b, d.logger)
		if errors.Is(err, binding.ErrNotFound) {
			d.logger.Warn("trigger: element not found", "id", b.ID, "key", b.Key, "selector", b.Selector)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trigger: %w", err)
		}
		if err := d.page.Click(ctx, el); err != nil {
			return nil, fmt.Errorf("trigger: click %s: %w", b.ID, err)
		}
		if selector != b.Selector {
			if err := d.bindings.UpdateSelector(ctx, b.ID, selector); err != nil {
				d.logger.Warn("trigger: selector update failed", "id", b.ID, "error", err)
			} else {
				b.Selector = selector
			}
		}
		d.logger.Info("trigger: fired", "id", b.ID, "key", b.Key, "domain", domain, "path", path)
		return b, nil
	}
	return nil, nil
}

// Run dispatches events from src until ctx is done or the source closes.
// Dispatch failures are logged, not returned.
func (d *Dispatcher) Run(ctx context.Context, src registration.Source) error {
	events, err := src.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("trigger: subscribe: %w", err)
	}
	d.logger.Info("trigger: running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := d.Dispatch(ctx, ev); err != nil {
				d.logger.Warn("trigger: dispatch failed", "key", ev.Key, "error", err)
			}
		}
	}
}
