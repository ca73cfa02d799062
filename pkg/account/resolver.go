package account

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-sso/pkg/claims"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

// ErrCreationNotAllowed is returned by CreateIfAllowed when the realm or its
// policy refuses provisioning.
var ErrCreationNotAllowed = errors.New("account creation not allowed")

// Overrides are explicit exceptions to the login permission check.
type Overrides struct {
	// AllowLoginIfDisabled bypasses only the enabled check.
	AllowLoginIfDisabled bool
}

// OverridesFor derives overrides from a realm policy.
func OverridesFor(p realm.Policy) Overrides {
	return Overrides{AllowLoginIfDisabled: p.AllowLoginIfDisabled}
}

// IdentifierFunc derives the login name for a new account.
type IdentifierFunc func(c *claims.IdentityClaims) string

// EmailIdentifier uses the lower-cased email, falling back to the subject.
func EmailIdentifier(c *claims.IdentityClaims) string {
	if c.Email != "" {
		return strings.ToLower(c.Email)
	}
	return c.SubjectID
}

// Resolver links identity claims to local accounts.
type Resolver struct {
	repo                  Repository
	now                   func() time.Time
	identifier            IdentifierFunc
	provisionLoginAllowed bool
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithIdentifierFunc sets how login names of provisioned accounts are derived.
func WithIdentifierFunc(f IdentifierFunc) ResolverOption {
	return func(r *Resolver) {
		r.identifier = f
	}
}

// WithProvisionedLoginAllowed sets the login flag on provisioned accounts.
// Defaults to true.
func WithProvisionedLoginAllowed(allowed bool) ResolverOption {
	return func(r *Resolver) {
		r.provisionLoginAllowed = allowed
	}
}

// NewResolver creates a Resolver over repo.
func NewResolver(repo Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:                  repo,
		now:                   time.Now,
		identifier:            EmailIdentifier,
		provisionLoginAllowed: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the account linked to the claims' subject in realm rl.
func (r *Resolver) Resolve(ctx context.Context, c *claims.IdentityClaims, rl realm.Realm) (*Account, bool, error) {
	if !c.HasSubject() {
		return nil, false, fmt.Errorf("claims have no subject")
	}
	a, err := r.repo.FindByExternalID(ctx, rl, c.SubjectID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find account: %w", err)
	}
	return a, true, nil
}

// CreateIfAllowed provisions an account for the claims. Realms that forbid
// auto-creation refuse regardless of policy.AutoCreate.
func (r *Resolver) CreateIfAllowed(ctx context.Context, c *claims.IdentityClaims, rl realm.Realm, policy realm.Policy) (*Account, error) {
	if realm.AutoCreateForbidden(rl) {
		return nil, ErrCreationNotAllowed
	}
	if !policy.AutoCreate {
		return nil, ErrCreationNotAllowed
	}
	if !c.HasSubject() {
		return nil, fmt.Errorf("claims have no subject")
	}

	now := r.now().UTC()
	a := &Account{
		ID:           uuid.New(),
		Realm:        rl,
		ExternalID:   c.SubjectID,
		Identifier:   r.identifier(c),
		Email:        c.Email,
		FullName:     c.FullName,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Enabled:      true,
		LoginAllowed: r.provisionLoginAllowed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.LastSyncedAttributes = syncedAttributes(c, policy)

	err := r.repo.Insert(ctx, a)
	if errors.Is(err, ErrDuplicate) {
		// created by a concurrent callback for the same subject
		existing, found, rerr := r.Resolve(ctx, c, rl)
		if rerr != nil {
			return nil, rerr
		}
		if found {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// SyncAttributes copies profile claims onto the account and persists it
// when anything changed. Applying the same claims twice is a no-op the
// second time.
func (r *Resolver) SyncAttributes(ctx context.Context, a *Account, c *claims.IdentityClaims, policy realm.Policy) (bool, error) {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&a.Email, c.Email)
	set(&a.FullName, c.FullName)
	set(&a.FirstName, c.FirstName)
	set(&a.LastName, c.LastName)

	attrs := syncedAttributes(c, policy)
	if !maps.Equal(attrs, a.LastSyncedAttributes) {
		a.LastSyncedAttributes = attrs
		changed = true
	}

	if !changed {
		return false, nil
	}
	a.UpdatedAt = r.now().UTC()
	if err := r.repo.Update(ctx, a); err != nil {
		return false, fmt.Errorf("failed to sync account: %w", err)
	}
	return true, nil
}

// CheckLoginAllowed evaluates
// enabled && !locked && (loginFlag || !policy.RequireLoginFlag) && active.
func (r *Resolver) CheckLoginAllowed(a *Account, policy realm.Policy, ov Overrides, now time.Time) bool {
	return r.LoginDenial(a, policy, ov, now) == ""
}

// LoginDenial returns why login is refused, or "" when it is allowed.
func (r *Resolver) LoginDenial(a *Account, policy realm.Policy, ov Overrides, now time.Time) reason.Reason {
	if a == nil {
		return reason.AccountNotFound
	}
	if !a.Enabled && !ov.AllowLoginIfDisabled {
		return reason.AccountDisabled
	}
	if a.IsLocked(now) {
		return reason.AccountDisabled
	}
	if policy.RequireLoginFlag && !a.LoginAllowed {
		return reason.LoginNotEnabled
	}
	if !a.ActiveAt(now) {
		return reason.AccountDisabled
	}
	return ""
}

// FinalizeSuccessfulLogin clears lock state and failed attempts, stamps the
// login time and returns the account's login identifier.
func (r *Resolver) FinalizeSuccessfulLogin(ctx context.Context, a *Account) (string, error) {
	now := r.now().UTC()
	a.Enabled = true
	a.Locked = false
	a.LockedUntil = nil
	a.FailedAttempts = 0
	a.LastLoginAt = &now
	a.UpdatedAt = now

	if err := r.repo.Update(ctx, a); err != nil {
		return "", fmt.Errorf("failed to finalize login: %w", err)
	}
	return a.Identifier, nil
}

func syncedAttributes(c *claims.IdentityClaims, policy realm.Policy) map[string]string {
	attrs := map[string]string{
		"sub":   c.SubjectID,
		"email": c.Email,
	}
	if c.FullName != "" {
		attrs["name"] = c.FullName
	}
	if len(c.Roles) > 0 {
		attrs["roles"] = c.RolesString()
	}
	for _, name := range policy.SyncClaims {
		if v := c.StringClaim(name); v != "" {
			attrs[name] = v
		}
	}
	return attrs
}
