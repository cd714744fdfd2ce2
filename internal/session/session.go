// internal/session/session.go
//
// formlab – visitor sessions.
//
// Context
//   Each browser gets an opaque visitor id in the `formlab_visitor` cookie.
//   The id keys the per-visitor form controllers and binds CSRF tokens.
//   Nothing else is stored client-side; the cookie carries a random UUID
//   and no user data.
//
//   Middleware issues the cookie on first contact and places the id in the
//   request context, so handlers call VisitorID(ctx) and never touch
//   cookies directly.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName is the visitor cookie.
const CookieName = "formlab_visitor"

const maxAge = 14 * 24 * time.Hour

type ctxKey struct{}

// Middleware ensures every request carries a visitor id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := fromCookie(r)
		if !ok {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(maxAge),
			})
		}
		next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), id)))
	})
}

// WithVisitor returns ctx carrying id.
func WithVisitor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// VisitorID returns the id placed by Middleware, or "".
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// fromCookie accepts only well-formed UUIDs so a forged cookie cannot pick
// arbitrary cache keys.
func fromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
