// internal/site/repository_test.go
//
// Unit-tests for site.Store using sqlmock.
//
// Run: go test ./internal/site -v

package site

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const acmeID = "5b0e4c8e-3c0a-4c7e-9a59-2d7c1f0c8a11"

var cols = []string{"id", "subdomain", "custom_domain", "name", "published", "active", "created_at", "updated_at"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestFindActiveBy_Subdomain(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE subdomain = ? AND active = 1 LIMIT 1`)).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(acmeID, "Acme", nil, "Acme", true, true, now, now))

	rec, err := store.FindActiveBy(context.Background(), LookupKey{Kind: KindSubdomain, Value: "acme"})
	if err != nil {
		t.Fatalf("FindActiveBy: %v", err)
	}
	if rec.ID.String() != acmeID {
		t.Errorf("ID = %s", rec.ID)
	}
	if rec.Subdomain != "acme" { // normalized
		t.Errorf("Subdomain = %q", rec.Subdomain)
	}
	if rec.CustomDomain != "" || !rec.Published {
		t.Errorf("unexpected record %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFindActiveBy_CustomDomain(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE custom_domain = ? AND active = 1 LIMIT 1`)).
		WithArgs("shop.acme.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(acmeID, "acme", "Shop.Acme.com.", "Acme", false, true, now, now))

	rec, err := store.FindActiveBy(context.Background(), LookupKey{Kind: KindCustomDomain, Value: "shop.acme.com"})
	if err != nil {
		t.Fatalf("FindActiveBy: %v", err)
	}
	if rec.CustomDomain != "shop.acme.com" || rec.Published {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestFindActiveBy_NotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE subdomain = ?`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := store.FindActiveBy(context.Background(), LookupKey{Kind: KindSubdomain, Value: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindActiveBy_DriverError(t *testing.T) {
	store, mock := newMock(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE subdomain = ?`)).
		WithArgs("acme").
		WillReturnError(boom)

	_, err := store.FindActiveBy(context.Background(), LookupKey{Kind: KindSubdomain, Value: "acme"})
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want wrapped driver error", err)
	}
}

func TestFindActiveBy_MalformedRow(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE subdomain = ?`)).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("not-a-uuid", "acme", nil, "Acme", true, true, now, now))

	_, err := store.FindActiveBy(context.Background(), LookupKey{Kind: KindSubdomain, Value: "acme"})
	if !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("err = %v, want ErrMalformedRow", err)
	}
}

func TestFindActiveBy_UnknownKind(t *testing.T) {
	store, _ := newMock(t)
	_, err := store.FindActiveBy(context.Background(), LookupKey{Kind: "path", Value: "x"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestAllActive_SkipsMalformed(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM site WHERE active = 1`)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(acmeID, "acme", nil, "Acme", true, true, now, now).
			AddRow(acmeID, "-bad-", nil, "Bad", true, true, now, now))

	recs, skipped, err := store.AllActive(context.Background())
	if err != nil {
		t.Fatalf("AllActive: %v", err)
	}
	if len(recs) != 1 || skipped != 1 {
		t.Fatalf("got %d records, %d skipped; want 1 and 1", len(recs), skipped)
	}
}

func TestValidLabel(t *testing.T) {
	for _, ok := range []string{"a", "acme", "a-b", "0day", "x1"} {
		if !ValidLabel(ok) {
			t.Errorf("ValidLabel(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "-a", "a-", "A", "a.b", "a_b", string(make([]byte, 64))} {
		if ValidLabel(bad) {
			t.Errorf("ValidLabel(%q) = true", bad)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	good := Record{ID: uuid.MustParse(acmeID), Subdomain: "acme", Active: true}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	bad := map[string]Record{
		"nil id":        {Subdomain: "acme", Active: true},
		"bad label":     {ID: good.ID, Subdomain: "-Acme-", Active: true},
		"empty label":   {ID: good.ID, Active: true},
		"inactive site": {ID: good.ID, Subdomain: "acme"},
	}
	for name, rec := range bad {
		if err := rec.Validate(); !errors.Is(err, ErrMalformedRow) {
			t.Errorf("%s: err = %v, want ErrMalformedRow", name, err)
		}
	}
}
