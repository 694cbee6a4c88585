// internal/session/session.go
//
// Blooms – signed session cookie.
//
// Context
//   The dashboard signs a user in by issuing an HS256 JWT in the
//   “blooms_session” cookie.  The gateway only needs to read it, to decide
//   whether a main-app request is authenticated and who is viewing an
//   unpublished site.  Issue and Clear live here too so login/logout
//   handlers and tests share one format.
//
// Scope
//   With Domain set to the platform suffix (".blooms.cc") one sign-in on
//   the dashboard also reaches every <label>.blooms.cc site.  Custom
//   domains sit outside that cookie scope; a viewer there is anonymous
//   unless the renderer establishes its own session on that host.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "blooms_session"
	DefaultTTL        = 14 * 24 * time.Hour
	issuer            = "blooms"
)

var (
	// ErrNoSession means the request carries no session cookie.
	ErrNoSession = errors.New("no session")

	// ErrExpired means the session token is genuine but past exp.
	ErrExpired = errors.New("session expired")

	// ErrInvalid means the token failed signature or claim validation.
	ErrInvalid = errors.New("session invalid")
)

// Claims are the session token's payload.  Subject carries the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// Options configures a Manager.
type Options struct {
	CookieName string
	Secret     []byte
	TTL        time.Duration
	Secure     bool
	Domain     string // cookie Domain attribute; host-only when empty
}

// Manager issues, reads, and clears session cookies.
type Manager struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
	domain string
	now    func() time.Time
}

// NewManager validates opts.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session: empty signing secret")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Manager{
		name:   opts.CookieName,
		secret: opts.Secret,
		ttl:    opts.TTL,
		secure: opts.Secure,
		domain: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(opts.Domain)), "."),
		now:    time.Now,
	}, nil
}

// Token signs a session token for userID.
func (m *Manager) Token(userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("session: empty user id")
	}
	now := m.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Issue sets a session cookie for userID.
//
// Callers typically invoke this after credential verification succeeds.
func (m *Manager) Issue(w http.ResponseWriter, userID, email string) error {
	tok, err := m.Token(userID, email)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    tok,
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read verifies the session cookie on r.
func (m *Manager) Read(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return m.Parse(c.Value)
}

// Parse verifies a raw session token.
func (m *Manager) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return &claims, nil
}
