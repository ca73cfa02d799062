// Package flowstate persists the per-realm state that carries a login attempt
// across the redirect to the identity provider and back.
package flowstate

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/tendant/simple-sso/pkg/realm"
)

// FlowState is stored once per realm per session.
type FlowState struct {
	CorrelationToken string            `json:"correlation_token"`
	TargetPath       string            `json:"target_path"`
	FailurePath      string            `json:"failure_path"`
	Context          map[string]string `json:"context,omitempty"`
	CodeVerifier     string            `json:"code_verifier,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Flash is a one-shot message shown after a redirect.
type Flash struct {
	Reason      string `json:"reason"`
	Matter      string `json:"matter"`
	HowToFix    string `json:"how_to_fix,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Store implements Start/Consume over a SessionStore.
type Store struct {
	sessions SessionStore
	now      func() time.Time
	maxAge   time.Duration
	withPKCE bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxAge rejects states older than d on Consume. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		s.maxAge = d
	}
}

// WithoutPKCE skips generating a code verifier.
func WithoutPKCE() Option {
	return func(s *Store) {
		s.withPKCE = false
	}
}

// NewStore creates a flow state store.
func NewStore(sessions SessionStore, opts ...Option) *Store {
	s := &Store{
		sessions: sessions,
		now:      time.Now,
		withPKCE: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func flowKey(r realm.Realm) string {
	return "flow." + r.String()
}

func flashKey(r realm.Realm) string {
	return "flash." + r.String()
}

// generateSecureState generates a 32-byte hex correlation token.
func generateSecureState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Start stores a new flow for realm r, replacing any flow already stored for
// that realm in the same session.
func (s *Store) Start(ctx context.Context, sessionID string, r realm.Realm, targetPath, failurePath string, flowCtx map[string]string) (FlowState, error) {
	if sessionID == "" {
		return FlowState{}, fmt.Errorf("session id is required")
	}
	token, err := generateSecureState()
	if err != nil {
		return FlowState{}, fmt.Errorf("failed to generate state: %w", err)
	}

	fs := FlowState{
		CorrelationToken: token,
		TargetPath:       targetPath,
		FailurePath:      failurePath,
		Context:          copyContext(flowCtx),
		CreatedAt:        s.now().UTC(),
	}
	if s.withPKCE {
		fs.CodeVerifier = oauth2.GenerateVerifier()
	}

	b, err := json.Marshal(fs)
	if err != nil {
		return FlowState{}, fmt.Errorf("failed to encode flow state: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionID, flowKey(r), b); err != nil {
		return FlowState{}, fmt.Errorf("failed to store flow state: %w", err)
	}
	return fs, nil
}

// Consume returns and clears the stored flow for realm r only if the
// supplied token matches it. A missing, mismatched or expired state yields
// ok=false and leaves storage untouched.
func (s *Store) Consume(ctx context.Context, sessionID string, r realm.Realm, suppliedToken string) (FlowState, bool, error) {
	if sessionID == "" || suppliedToken == "" {
		return FlowState{}, false, nil
	}

	var matched FlowState
	match := func(b []byte) bool {
		var fs FlowState
		if err := json.Unmarshal(b, &fs); err != nil {
			return false
		}
		if fs.CorrelationToken == "" {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(fs.CorrelationToken), []byte(suppliedToken)) != 1 {
			return false
		}
		if s.maxAge > 0 && s.now().Sub(fs.CreatedAt) > s.maxAge {
			return false
		}
		matched = fs
		return true
	}

	_, ok, err := s.sessions.TakeIf(ctx, sessionID, flowKey(r), match)
	if err != nil {
		return FlowState{}, false, fmt.Errorf("failed to consume flow state: %w", err)
	}
	if !ok {
		return FlowState{}, false, nil
	}
	return matched, true, nil
}

// Peek returns the stored flow for realm r without modifying it.
func (s *Store) Peek(ctx context.Context, sessionID string, r realm.Realm) (FlowState, bool, error) {
	if sessionID == "" {
		return FlowState{}, false, nil
	}
	b, ok, err := s.sessions.Get(ctx, sessionID, flowKey(r))
	if err != nil || !ok {
		return FlowState{}, false, err
	}
	var fs FlowState
	if err := json.Unmarshal(b, &fs); err != nil {
		return FlowState{}, false, nil
	}
	return fs, true, nil
}

// SetFlash stores a one-shot message for realm r.
func (s *Store) SetFlash(ctx context.Context, sessionID string, r realm.Realm, f Flash) error {
	if sessionID == "" {
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, sessionID, flashKey(r), b)
}

// PopFlash returns and clears the message for realm r.
func (s *Store) PopFlash(ctx context.Context, sessionID string, r realm.Realm) (Flash, bool, error) {
	if sessionID == "" {
		return Flash{}, false, nil
	}
	b, ok, err := s.sessions.TakeIf(ctx, sessionID, flashKey(r), func([]byte) bool { return true })
	if err != nil || !ok {
		return Flash{}, false, err
	}
	var f Flash
	if err := json.Unmarshal(b, &f); err != nil {
		return Flash{}, false, nil
	}
	return f, true, nil
}

func copyContext(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
