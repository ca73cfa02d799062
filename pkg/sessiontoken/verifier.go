package sessiontoken

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

// LoginUserKey holds the *LoginUser in the request context.
const LoginUserKey contextKey = "login_user"

// LoginUser is the authenticated principal taken from the login token.
type LoginUser struct {
	Realm      string `json:"realm"`
	AccountID  string `json:"account_id"`
	Identifier string `json:"identifier"`
}

// NewJWTAuth returns the jwtauth verifier for tokens signed with key.
func NewJWTAuth(key []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", key, nil)
}

// Verifier finds, verifies and validates a login token from the
// Authorization header or the login cookie.
func Verifier(ja *jwtauth.JWTAuth, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, tokenFromCookie(cookieName))(next)
	}
}

func tokenFromCookie(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

func loadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// LoginUserMiddleware rejects requests without a verified token and stores
// the LoginUser in the context. It must run after Verifier.
func LoginUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		user := new(LoginUser)
		if err := loadFromMap(claims, user); err != nil {
			em := fmt.Errorf("invalid claims: %w", err)
			http.Error(w, em.Error(), http.StatusUnauthorized)
			return
		}
		if user.Identifier == "" || user.AccountID == "" {
			http.Error(w, "missing account", http.StatusUnauthorized)
			return
		}

		slog.Debug("Login token accepted", "realm", user.Realm, "identifier", user.Identifier)
		ctx := context.WithValue(r.Context(), LoginUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the LoginUser stored by LoginUserMiddleware.
func FromContext(ctx context.Context) (*LoginUser, bool) {
	u, ok := ctx.Value(LoginUserKey).(*LoginUser)
	return u, ok
}

// JWTAuth returns a verifier for the tokens this issuer signs.
func (i *Issuer) JWTAuth() *jwtauth.JWTAuth {
	return NewJWTAuth(i.key)
}
