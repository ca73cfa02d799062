// Package sessiontoken establishes the local session after a successful
// external login: it signs a short-lived login token and sets it as a cookie.
package sessiontoken

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/tendant/simple-sso/pkg/realm"
)

// DefaultCookieName is the cookie carrying the login token.
const DefaultCookieName = "sso_login"

// Claims are the login token claims.
type Claims struct {
	Realm      string `json:"realm"`
	AccountID  string `json:"account_id"`
	Identifier string `json:"identifier"`
	jwt.RegisteredClaims
}

// DeriveKey derives a purpose-bound signing key from the service secret.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("secret must be at least 16 bytes")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Issuer signs HS256 login tokens.
type Issuer struct {
	key        []byte
	issuer     string
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithIssuerName sets the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = name
	}
}

// WithCookie sets the cookie name and Secure flag.
func WithCookie(name string, secure bool) IssuerOption {
	return func(i *Issuer) {
		i.cookieName = name
		i.secure = secure
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer signing with key.
func NewIssuer(key []byte, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		key:        key,
		issuer:     "simple-sso",
		ttl:        8 * time.Hour,
		cookieName: DefaultCookieName,
		secure:     true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CookieName returns the name of the login cookie.
func (i *Issuer) CookieName() string {
	return i.cookieName
}

// Issue signs a login token for the account.
func (i *Issuer) Issue(r realm.Realm, accountID uuid.UUID, identifier string) (string, time.Time, error) {
	now := i.now()
	expiry := now.Add(i.ttl)
	claims := Claims{
		Realm:      r.String(),
		AccountID:  accountID.String(),
		Identifier: identifier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign login token: %w", err)
	}
	return signed, expiry, nil
}

// SetCookie issues a token and stores it in an HttpOnly cookie.
func (i *Issuer) SetCookie(w http.ResponseWriter, r realm.Realm, accountID uuid.UUID, identifier string) error {
	token, expiry, err := i.Issue(r, accountID, identifier)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     i.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie removes the login cookie.
func (i *Issuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     i.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.secure,
	})
}
