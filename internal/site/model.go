// internal/site/model.go
//
// `site` table row model.
//
// Context
// -------
// `Record` is the validated, normalized form of one row in the persistent
// **site** table.  Rows are scanned into the unexported `row` type and
// converted by `row.record()`, so nothing loosely typed ever leaves this
// package.
//
// Schema reference
//
//	CREATE TABLE site (
//	    id             CHAR(36)      PRIMARY KEY,
//	    subdomain      VARCHAR(63)   NOT NULL UNIQUE,
//	    custom_domain  VARCHAR(253)  NULL UNIQUE,
//	    name           VARCHAR(255)  NOT NULL,
//	    published      TINYINT(1)    NOT NULL DEFAULT 0,
//	    active         TINYINT(1)    NOT NULL DEFAULT 1,
//	    created_at     TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at     TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
// • Deactivation is a soft flag; rows are never hard-deleted while content
//   references them.
// • `CustomDomain` is the empty string when the column is NULL.
package site

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record mirrors one active row in the `site` table.
type Record struct {
	ID           uuid.UUID `json:"id"`
	Subdomain    string    `json:"subdomain"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	Name         string    `json:"name"`
	Published    bool      `json:"published"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// row is the raw sqlx scan target.
type row struct {
	ID           string    `db:"id"`
	Subdomain    string    `db:"subdomain"`
	CustomDomain *string   `db:"custom_domain"`
	Name         string    `db:"name"`
	Published    bool      `db:"published"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

var labelRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidLabel reports whether s is a lowercase DNS label: alphanumerics and
// hyphens, 1–63 chars, no leading or trailing hyphen.
func ValidLabel(s string) bool { return labelRE.MatchString(s) }

// record validates and normalizes a scanned row.
func (r row) record() (*Record, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.ID))
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: id %q", ErrMalformedRow, r.ID)
	}
	sub := strings.ToLower(strings.TrimSpace(r.Subdomain))
	if !ValidLabel(sub) {
		return nil, fmt.Errorf("%w: subdomain %q", ErrMalformedRow, r.Subdomain)
	}
	rec := &Record{
		ID:        id,
		Subdomain: sub,
		Name:      strings.TrimSpace(r.Name),
		Published: r.Published,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CustomDomain != nil {
		rec.CustomDomain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(*r.CustomDomain)), ".")
	}
	if rec.Name == "" {
		rec.Name = rec.Subdomain
	}
	return rec, nil
}

// Validate applies the store-boundary checks to a Record that arrived by
// another path, such as a shared cache.
func (r *Record) Validate() error {
	switch {
	case r.ID == uuid.Nil:
		return fmt.Errorf("%w: nil id", ErrMalformedRow)
	case !ValidLabel(r.Subdomain):
		return fmt.Errorf("%w: subdomain %q", ErrMalformedRow, r.Subdomain)
	case !r.Active:
		return fmt.Errorf("%w: inactive site %s", ErrMalformedRow, r.ID)
	}
	return nil
}
