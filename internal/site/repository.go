// internal/site/repository.go
//
// Site-table query helpers.
//
// Context
// -------
//   - `FindActiveBy` – Lookup Service on a cache miss.
//   - `AllActive`    – startup sanity count, admin tooling.
//
// Both helpers exclude inactive rows at SQL level and run every row
// through `row.record()` before returning it.
//
// Notes
// -----
//   - Column list matches the fields in `row`; update both together.
//   - Errors are returned wrapped so callers can `errors.Is` against
//     ErrNotFound and ErrMalformedRow.
package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const columns = `id, subdomain, custom_domain, name, published, active, created_at, updated_at`

// Store reads the control-plane `site` table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a control-plane pool.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// FindActiveBy fetches the single active site owning key.  It returns
// ErrNotFound when no row matches.
func (s *Store) FindActiveBy(ctx context.Context, key LookupKey) (*Record, error) {
	var q string
	switch key.Kind {
	case KindSubdomain:
		q = `SELECT ` + columns + ` FROM site WHERE subdomain = ? AND active = 1 LIMIT 1`
	case KindCustomDomain:
		q = `SELECT ` + columns + ` FROM site WHERE custom_domain = ? AND active = 1 LIMIT 1`
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, key.Kind)
	}

	var r row
	if err := s.db.GetContext(ctx, &r, q, key.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("site lookup %s: %w", key, err)
	}
	return r.record()
}

// AllActive returns every active site.  Malformed rows are skipped and
// counted in the second return value.
func (s *Store) AllActive(ctx context.Context) ([]Record, int, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+columns+` FROM site WHERE active = 1`); err != nil {
		return nil, 0, err
	}
	out := make([]Record, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			skipped++
			continue
		}
		out = append(out, *rec)
	}
	return out, skipped, nil
}
