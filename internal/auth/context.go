// internal/auth/context.go
//
// Current-user resolution.
//
// Usage
// -----
//     p := auth.NewSessionProvider(sessions)
//     u, err := p.CurrentUser(r)   // nil, nil when signed out
//
//     // Downstream code retrieves the viewer.
//     ctx = auth.WithUser(ctx, u)
//     u, ok := auth.UserFrom(ctx)
//
// Notes
// -----
// • A missing or expired session is "no user", not an error.  Errors are
//   reserved for tokens that fail verification.
// • Oxford commas, two spaces after periods.

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/yanizio/blooms/internal/session"
)

// User is the authenticated viewer.
type User struct {
	ID    string
	Email string
}

// Provider reports the user behind a request.
type Provider interface {
	CurrentUser(r *http.Request) (*User, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(r *http.Request) (*User, error)

func (f ProviderFunc) CurrentUser(r *http.Request) (*User, error) { return f(r) }

// SessionProvider reads the signed session cookie.
type SessionProvider struct {
	sessions *session.Manager
}

// NewSessionProvider wraps a session.Manager.
func NewSessionProvider(m *session.Manager) *SessionProvider {
	return &SessionProvider{sessions: m}
}

func (p *SessionProvider) CurrentUser(r *http.Request) (*User, error) {
	claims, err := p.sessions.Read(r)
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrExpired):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &User{ID: claims.UserID(), Email: claims.Email}, nil
}

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom extracts the user from ctx.  It returns (nil, false) if none is
// set.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
