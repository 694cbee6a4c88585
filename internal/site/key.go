package site

import "errors"

// Kind selects which unique column a LookupKey targets.
type Kind string

const (
	KindSubdomain    Kind = "subdomain"
	KindCustomDomain Kind = "custom_domain"
)

// LookupKey identifies a site by subdomain label or custom domain.  Two
// keys with the same Value but different Kinds are distinct.
type LookupKey struct {
	Kind  Kind
	Value string
}

// String renders "kind:value", used for cache and singleflight keys.
func (k LookupKey) String() string { return string(k.Kind) + ":" + k.Value }

var (
	// ErrNotFound is returned when no active site matches a key.
	ErrNotFound = errors.New("site not found")

	// ErrMalformedRow is returned when a row fails boundary validation.
	ErrMalformedRow = errors.New("malformed site row")

	// ErrUnknownKind is returned for a LookupKey with an unsupported Kind.
	ErrUnknownKind = errors.New("unknown lookup kind")
)
