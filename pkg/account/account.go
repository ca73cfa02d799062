// Package account maps remote identities onto local accounts: lookup,
// optional provisioning, attribute sync and the login permission check.
package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-sso/pkg/realm"
)

// Account is a local user record linked to a remote principal by ExternalID.
type Account struct {
	ID         uuid.UUID   `json:"id"`
	Realm      realm.Realm `json:"realm"`
	ExternalID string      `json:"external_id"`
	Identifier string      `json:"identifier"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`

	Enabled        bool       `json:"enabled"`
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	LoginAllowed   bool       `json:"login_allowed"`

	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	LastSyncedAttributes map[string]string `json:"last_synced_attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLocked reports whether a lock is in force at now. A lock with an
// expiry in the past no longer counts.
func (a *Account) IsLocked(now time.Time) bool {
	if !a.Locked {
		return false
	}
	return a.LockedUntil == nil || now.Before(*a.LockedUntil)
}

// ActiveAt reports whether now falls inside the account's active window.
// Open bounds are unbounded.
func (a *Account) ActiveAt(now time.Time) bool {
	if a.ActiveFrom != nil && now.Before(*a.ActiveFrom) {
		return false
	}
	if a.ActiveUntil != nil && !now.Before(*a.ActiveUntil) {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.LockedUntil = cloneTime(a.LockedUntil)
	c.ActiveFrom = cloneTime(a.ActiveFrom)
	c.ActiveUntil = cloneTime(a.ActiveUntil)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	if a.LastSyncedAttributes != nil {
		c.LastSyncedAttributes = make(map[string]string, len(a.LastSyncedAttributes))
		for k, v := range a.LastSyncedAttributes {
			c.LastSyncedAttributes[k] = v
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
