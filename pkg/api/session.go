package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// DefaultSessionCookieName keys the flow state of a browser.
const DefaultSessionCookieName = "sso_session"

type contextKey string

const sessionIDKey contextKey = "sso_session_id"

type sessionCookie struct {
	name   string
	secure bool
}

// SessionMiddleware makes sure every request carries a session id, issuing
// a new cookie when the browser has none. The cookie is SameSite=Lax so it
// survives the top-level redirect back from the provider.
func (h *Handle) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(h.session.name); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     h.session.name,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.session.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// WithSessionID stores the session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id stored by SessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
