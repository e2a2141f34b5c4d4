package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/vind/binding"
)

// AddDisabledPath disables bindings on domain+path. Adding an existing
// entry is a no-op.
func (s *Store) AddDisabledPath(ctx context.Context, domain, path string) error {
	return addDisabled(ctx, s.DB, binding.Join(domain, path))
}

func addDisabled(ctx context.Context, db execer, domainPath string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO disabled_paths (domain_path, created_at) VALUES (?, ?)`,
		domainPath, time.Now().UnixMilli())
	return err
}

// RemoveDisabledPath re-enables bindings on domain+path.
func (s *Store) RemoveDisabledPath(ctx context.Context, domain, path string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM disabled_paths WHERE domain_path = ?`,
		binding.Join(domain, path))
	return err
}

// ToggleDisabledPath flips the entry for domain+path and returns whether
// the path is disabled afterwards.
func (s *Store) ToggleDisabledPath(ctx context.Context, domain, path string) (bool, error) {
	dp := binding.Join(domain, path)
	var disabled bool
	err := s.RunTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM disabled_paths WHERE domain_path = ?`, dp)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			disabled = false
			return nil
		}
		disabled = true
		return addDisabled(ctx, tx, dp)
	})
	return disabled, err
}

// RenameDisabledPath moves the entry for domain+from to domain+to. When
// the destination already exists the source is simply removed.
func (s *Store) RenameDisabledPath(ctx context.Context, domain, from, to string) error {
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		return renameDisabled(ctx, tx, domain, from, to)
	})
}

func renameDisabled(ctx context.Context, db execer, domain, from, to string) error {
	src, dst := binding.Join(domain, from), binding.Join(domain, to)
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disabled_paths WHERE domain_path = ?`, dst).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		_, err := db.ExecContext(ctx, `DELETE FROM disabled_paths WHERE domain_path = ?`, src)
		return err
	}
	_, err := db.ExecContext(ctx,
		`UPDATE disabled_paths SET domain_path = ? WHERE domain_path = ?`, dst, src)
	return err
}

// QueryDisabledPaths returns the entries starting with domain+path.
func (s *Store) QueryDisabledPaths(ctx context.Context, domain, path string) ([]string, error) {
	prefix := binding.Join(domain, path)
	return s.listDisabled(ctx, `SELECT domain_path FROM disabled_paths
		WHERE substr(domain_path, 1, length(?)) = ? ORDER BY domain_path`, prefix, prefix)
}

// ListDisabledPaths returns every entry.
func (s *Store) ListDisabledPaths(ctx context.Context) ([]string, error) {
	return s.listDisabled(ctx, `SELECT domain_path FROM disabled_paths ORDER BY domain_path`)
}

func (s *Store) listDisabled(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var dp string
		if err := rows.Scan(&dp); err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// DisabledSet returns every entry as a set, the form binding.Enclosing
// takes.
func (s *Store) DisabledSet(ctx context.Context) (map[string]bool, error) {
	all, err := s.ListDisabledPaths(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(all))
	for _, dp := range all {
		set[dp] = true
	}
	return set, nil
}

// Import writes bindings and disabled paths in a single transaction:
// either everything is stored or nothing is. Imported bindings replace
// those with the same ID or the same key on the same scope.
func (s *Store) Import(ctx context.Context, bs []*binding.Binding, disabled []string) error {
	return s.RunTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bs {
			if err := insertBinding(ctx, tx, b, "INSERT OR REPLACE"); err != nil {
				return err
			}
		}
		for _, dp := range disabled {
			if err := addDisabled(ctx, tx, dp); err != nil {
				return err
			}
		}
		return nil
	})
}
