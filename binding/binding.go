// Package binding holds the persisted association between a key and an
// element on a page scope, and the logic to find that element again.
//
// A Binding carries two ways back to its element: the cached absolute
// selector (fast path) and the structural locator tree it was resolved
// from (used to derive a fresh selector when the cached one stops matching
// exactly one element).
//
// Usage:
//
//	b := binding.New("example.com", "docs", "k", res.Selector, tree)
//	el, selector, err := binding.Locate(ctx, doc, b, logger)
package binding

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/vind/locator"
)

// Binding maps Key on a domain+path scope to one element.
type Binding struct {
	ID       string        `json:"id"`
	Domain   string        `json:"domain"`
	Path     string        `json:"path"`
	Key      string        `json:"key"`
	Selector string        `json:"selector"`
	Locator  *locator.Node `json:"-"`

	// Label is a short human-readable rendering of the element, for
	// listings only.
	Label     string `json:"label,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// New returns a Binding with a fresh ID. path is sanitised.
func New(domain, path, key, selector string, tree *locator.Node) *Binding {
	now := time.Now().UnixMilli()
	return &Binding{
		ID:        NewID(),
		Domain:    domain,
		Path:      SanitizePath(path),
		Key:       key,
		Selector:  selector,
		Locator:   tree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a time-sortable UUIDv7 string.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Validate checks the fields every stored binding must carry.
func (b *Binding) Validate() error {
	var errs []error
	if b.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if b.Domain == "" {
		errs = append(errs, errors.New("missing domain"))
	}
	if b.Key == "" {
		errs = append(errs, errors.New("missing key"))
	}
	if b.Selector == "" {
		errs = append(errs, errors.New("missing selector"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("binding %q: %w", b.ID, err)
	}
	return nil
}

// Scope returns the domain-qualified path, the key disabled paths use.
func (b *Binding) Scope() string {
	return Join(b.Domain, b.Path)
}
