package realm

import "slices"

// Policy holds everything that varies between realms. It is passed
// explicitly to every stage of the flow.
type Policy struct {
	Realm Realm

	// AutoCreate allows provisioning a local account on first login.
	// Ignored for realms where AutoCreateForbidden is true.
	AutoCreate bool

	RequireGroupMembership bool
	GroupPrefix            string
	GroupAllowList         []string

	RequireSubsectionMembership bool
	SubsectionPrefix            string
	SubsectionAllowList         []string

	// RequireLoginFlag demands the per-account login flag.
	RequireLoginFlag bool

	// AllowLoginIfDisabled lets a disabled account log in. Legacy
	// compatibility only.
	AllowLoginIfDisabled bool

	DefaultTargetPath  string
	DefaultFailurePath string

	Scopes     []string
	AuthParams map[string]string

	// SyncClaims names additional claims mirrored into the account's synced
	// attributes.
	SyncClaims []string
}

// CanAutoCreate combines the generic flag with the permanent realm restriction.
func (p Policy) CanAutoCreate() bool {
	if AutoCreateForbidden(p.Realm) {
		return false
	}
	return p.AutoCreate
}

// Clone returns a deep copy of the policy.
func (p Policy) Clone() Policy {
	c := p
	c.GroupAllowList = slices.Clone(p.GroupAllowList)
	c.SubsectionAllowList = slices.Clone(p.SubsectionAllowList)
	c.Scopes = slices.Clone(p.Scopes)
	c.SyncClaims = slices.Clone(p.SyncClaims)
	if p.AuthParams != nil {
		c.AuthParams = make(map[string]string, len(p.AuthParams))
		for k, v := range p.AuthParams {
			c.AuthParams[k] = v
		}
	}
	return c
}

// Policies maps each realm to its policy.
type Policies map[Realm]Policy

// For returns the policy of r. Unknown realms get a zero policy bound to r,
// which permits nothing optional.
func (ps Policies) For(r Realm) Policy {
	if p, ok := ps[r]; ok {
		p.Realm = r
		return p
	}
	return Policy{Realm: r, RequireLoginFlag: true, DefaultTargetPath: "/", DefaultFailurePath: "/"}
}

// DefaultPolicies returns conservative defaults: no auto-create, no group
// requirements, login flag required for frontend users only.
func DefaultPolicies() Policies {
	return Policies{
		Frontend: {
			Realm:              Frontend,
			GroupPrefix:        "GROUP",
			SubsectionPrefix:   "GROUP",
			RequireLoginFlag:   true,
			DefaultTargetPath:  "/",
			DefaultFailurePath: "/login",
			Scopes:             []string{"openid", "profile", "email"},
		},
		Backend: {
			Realm:              Backend,
			GroupPrefix:        "GROUP",
			SubsectionPrefix:   "GROUP",
			RequireLoginFlag:   false,
			DefaultTargetPath:  "/admin",
			DefaultFailurePath: "/admin/login",
			Scopes:             []string{"openid", "profile", "email"},
		},
	}
}
