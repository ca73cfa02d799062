// Package realm defines the audiences a login can target and the policy
// that applies to each of them.
package realm

import (
	"fmt"
	"strings"
)

// Realm is the audience of a login attempt. Each realm has its own session
// scope and policy.
type Realm string

const (
	Frontend Realm = "frontend"
	Backend  Realm = "backend"
)

// All returns the known realms.
func All() []Realm {
	return []Realm{Frontend, Backend}
}

// Parse converts an external realm indicator into a Realm.
func Parse(s string) (Realm, error) {
	switch Realm(strings.ToLower(strings.TrimSpace(s))) {
	case Frontend:
		return Frontend, nil
	case Backend:
		return Backend, nil
	}
	return "", fmt.Errorf("unknown realm: %q", s)
}

// Valid reports whether r is one of the known realms.
func (r Realm) Valid() bool {
	return r == Frontend || r == Backend
}

func (r Realm) String() string {
	return string(r)
}

// noAutoCreate lists realms that never provision accounts from a remote
// identity. Backend accounts carry administrative rights; creating one for an
// unknown remote principal would hand out administrative access, so the
// restriction is not configurable and overrides Policy.AutoCreate.
var noAutoCreate = map[Realm]struct{}{
	Backend: {},
}

// AutoCreateForbidden reports whether r permanently refuses auto-creation.
func AutoCreateForbidden(r Realm) bool {
	_, ok := noAutoCreate[r]
	return ok
}
