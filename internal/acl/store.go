// internal/acl/store.go
//
// Site membership queries.
//
// Context
// -------
// Access to an unpublished site is granted through membership rows in the
// control-plane database:
//
//	site_member (site_id CHAR(36), user_id VARCHAR(64), role VARCHAR(16),
//	             active TINYINT(1), PRIMARY KEY (site_id, user_id))
//
// The evaluator needs one answer per request: does user U hold an active
// membership on site S, and with which role?  `FindMembership()` answers it
// with a single primary-key lookup.
//
// Notes
// -----
// • A missing row is not an error; it returns (nil, nil).
// • Unknown role strings map to RoleNone and therefore grant nothing.
package acl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Role is a membership role on a site.
type Role string

const (
	RoleNone   Role = "none"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// ParseRole maps a stored role string to a Role.  Unknown values yield
// RoleNone.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleViewer, RoleEditor, RoleAdmin, RoleOwner:
		return r
	default:
		return RoleNone
	}
}

// Membership mirrors one `site_member` row.
type Membership struct {
	SiteID uuid.UUID
	UserID string
	Role   Role
	Active bool
}

type membershipRow struct {
	SiteID string `db:"site_id"`
	UserID string `db:"user_id"`
	Role   string `db:"role"`
	Active bool   `db:"active"`
}

// MembershipFinder is the lookup surface the Evaluator needs; *Store
// satisfies it.
type MembershipFinder interface {
	FindMembership(ctx context.Context, userID string, siteID uuid.UUID) (*Membership, error)
}

// Store reads memberships from the control-plane database.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// FindMembership returns the membership of userID on siteID, or (nil, nil)
// when none exists.
func (s *Store) FindMembership(ctx context.Context, userID string, siteID uuid.UUID) (*Membership, error) {
	const q = `SELECT site_id, user_id, role, active
                 FROM site_member
                WHERE site_id = ? AND user_id = ?
                LIMIT 1`

	var row membershipRow
	err := s.db.GetContext(ctx, &row, q, siteID.String(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("membership lookup %s/%s: %w", siteID, userID, err)
	}

	id, err := uuid.Parse(row.SiteID)
	if err != nil {
		return nil, fmt.Errorf("membership lookup %s/%s: bad site_id %q: %w", siteID, userID, row.SiteID, err)
	}
	return &Membership{
		SiteID: id,
		UserID: row.UserID,
		Role:   ParseRole(row.Role),
		Active: row.Active,
	}, nil
}
