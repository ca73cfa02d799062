// Package ratelimit throttles login starts from clients that keep producing
// aborted logins.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/realm"
)

// Config holds abort throttling settings
type Config struct {
	Capacity   int           // aborts allowed in a burst
	RefillRate float64       // aborts forgiven per second
	BucketTTL  time.Duration // idle buckets are dropped after this
}

// DefaultConfig allows 10 aborts in a burst, forgiving one every 30 seconds.
func DefaultConfig() Config {
	return Config{
		Capacity:   10,
		RefillRate: 1.0 / 30.0,
		BucketTTL:  time.Hour,
	}
}

// AbortThrottle spends a token for every aborted login, keyed by realm and
// client address, and rejects new login starts for exhausted keys.
type AbortThrottle struct {
	limiter *Limiter
}

// NewAbortThrottle creates a throttle. now may be nil.
func NewAbortThrottle(cfg Config, now func() time.Time) *AbortThrottle {
	return &AbortThrottle{limiter: NewLimiter(cfg.Capacity, cfg.RefillRate, cfg.BucketTTL, now)}
}

func throttleKey(r realm.Realm, addr string) string {
	return r.String() + "|" + addr
}

func (t *AbortThrottle) OnLoginAborted(_ context.Context, e events.LoginAborted) error {
	if e.RemoteAddr == "" {
		return nil
	}
	t.limiter.Take(throttleKey(e.Realm, e.RemoteAddr))
	return nil
}

func (t *AbortThrottle) OnLoginSucceeded(context.Context, events.LoginSucceeded) error {
	return nil
}

// Blocked reports whether addr may not start a login in realm r.
func (t *AbortThrottle) Blocked(r realm.Realm, addr string) (bool, time.Duration) {
	key := throttleKey(r, addr)
	if !t.limiter.Exhausted(key) {
		return false, 0
	}
	return true, t.limiter.RetryAfter(key)
}

// Close stops background cleanup.
func (t *AbortThrottle) Close() {
	t.limiter.Close()
}

// Middleware answers 429 for exhausted clients. realmOf extracts the realm
// from the request; requests without a valid realm pass through.
func (t *AbortThrottle) Middleware(realmOf func(*http.Request) (realm.Realm, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl, ok := realmOf(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if blocked, retry := t.Blocked(rl, ip); blocked {
				slog.Warn("Rate limit exceeded", "realm", rl, "ip", ip, "path", r.URL.Path, "method", r.Method)
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", fmt.Sprint(secs))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]any{
					"error":       "rate_limit_exceeded",
					"message":     "Too many failed sign-in attempts. Please try again later.",
					"retry_after": secs,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address from X-Forwarded-For, X-Real-IP or
// the connection, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
