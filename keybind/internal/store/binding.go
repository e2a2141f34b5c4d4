package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/locator"
)

const bindingColumns = `id, domain, path, key, selector, locator, label, created_at, updated_at`

func encodeLocator(b *binding.Binding) (string, error) {
	if b.Locator == nil {
		return "", nil
	}
	data, err := locator.MarshalMinified(b.Locator)
	if err != nil {
		return "", fmt.Errorf("store: encode locator %s: %w", b.ID, err)
	}
	return string(data), nil
}

func stamp(b *binding.Binding) {
	now := time.Now().UnixMilli()
	if b.CreatedAt == 0 {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// InsertBinding inserts a new binding. A binding for the same key on the
// same domain and path is an error.
func (s *Store) InsertBinding(ctx context.Context, b *binding.Binding) error {
	return insertBinding(ctx, s.DB, b, "INSERT")
}

// ReplaceBinding inserts b, replacing any binding with the same ID or the
// same key on the same domain and path.
func (s *Store) ReplaceBinding(ctx context.Context, b *binding.Binding) error {
	return insertBinding(ctx, s.DB, b, "INSERT OR REPLACE")
}

func insertBinding(ctx context.Context, db execer, b *binding.Binding, verb string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	loc, err := encodeLocator(b)
	if err != nil {
		return err
	}
	stamp(b)
	_, err = db.ExecContext(ctx, verb+` INTO bindings (`+bindingColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Domain, b.Path, b.Key, b.Selector, loc, b.Label, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// UpdateBinding rewrites every mutable field of an existing binding.
// Updating a missing binding is not an error.
func (s *Store) UpdateBinding(ctx context.Context, b *binding.Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	loc, err := encodeLocator(b)
	if err != nil {
		return err
	}
	stamp(b)
	_, err = s.DB.ExecContext(ctx, `
		UPDATE bindings SET domain = ?, path = ?, key = ?, selector = ?, locator = ?, label = ?, updated_at = ?
		WHERE id = ?`,
		b.Domain, b.Path, b.Key, b.Selector, loc, b.Label, b.UpdatedAt, b.ID,
	)
	return err
}

// UpdateSelector replaces the cached selector of a binding.
func (s *Store) UpdateSelector(ctx context.Context, id, selector string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE bindings SET selector = ?, updated_at = ? WHERE id = ?`,
		selector, time.Now().UnixMilli(), id)
	return err
}

// ChangeKey rebinds a binding to another key. It reports whether the
// binding exists.
func (s *Store) ChangeKey(ctx context.Context, id, key string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE bindings SET key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MoveBindings moves every binding of domain from one path to another and
// returns how many moved. Moved bindings replace those already bound to
// the same key at the destination.
func (s *Store) MoveBindings(ctx context.Context, domain, from, to string) (int64, error) {
	return moveBindings(ctx, s.DB, domain, from, to)
}

// MovePath moves the bindings of domain from one path to another together
// with the disabled entry of the path, in one transaction.
func (s *Store) MovePath(ctx context.Context, domain, from, to string) (int64, error) {
	var n int64
	err := s.RunTx(ctx, func(tx *sql.Tx) error {
		var err error
		if n, err = moveBindings(ctx, tx, domain, from, to); err != nil {
			return err
		}
		return renameDisabled(ctx, tx, domain, from, to)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func moveBindings(ctx context.Context, db execer, domain, from, to string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE OR REPLACE bindings SET path = ?, updated_at = ? WHERE domain = ? AND path = ?`,
		to, time.Now().UnixMilli(), domain, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetBinding retrieves a binding by ID. It returns nil, nil when absent.
func (s *Store) GetBinding(ctx context.Context, id string) (*binding.Binding, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// DeleteBinding removes a binding. It reports whether it existed.
func (s *Store) DeleteBinding(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAllBindings removes every binding.
func (s *Store) DeleteAllBindings(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM bindings`)
	return err
}

// ListBindings returns every binding ordered by domain, path and key.
func (s *Store) ListBindings(ctx context.Context) ([]*binding.Binding, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+bindingColumns+` FROM bindings
		ORDER BY domain, path, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows)
}

// ListBindingsByDomain returns the bindings of one domain.
func (s *Store) ListBindingsByDomain(ctx context.Context, domain string) ([]*binding.Binding, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+bindingColumns+` FROM bindings
		WHERE domain = ? ORDER BY path, key`, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows)
}

// ListBindingsForSite returns the bindings of domain whose path encloses
// site: the empty path, site itself, or a segment-wise prefix of it.
func (s *Store) ListBindingsForSite(ctx context.Context, domain, site string) ([]*binding.Binding, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+bindingColumns+` FROM bindings
		WHERE domain = ?
		  AND (path = '' OR path = ? OR substr(?, 1, length(path) + 1) = path || '/')
		ORDER BY length(path) DESC, key`, domain, site, site)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows)
}

// CountBindings returns the number of stored bindings.
func (s *Store) CountBindings(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM bindings`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (*binding.Binding, error) {
	b := &binding.Binding{}
	var loc string
	if err := row.Scan(&b.ID, &b.Domain, &b.Path, &b.Key, &b.Selector, &loc, &b.Label,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if loc != "" {
		tree, err := locator.UnmarshalMinified([]byte(loc))
		if err != nil {
			return nil, fmt.Errorf("store: binding %s: %w", b.ID, err)
		}
		b.Locator = tree
	}
	return b, nil
}

func scanBindings(rows *sql.Rows) ([]*binding.Binding, error) {
	var out []*binding.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
