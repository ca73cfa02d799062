package config

import (
	"fmt"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/tendant/simple-sso/pkg/authflow"
	"github.com/tendant/simple-sso/pkg/realm"
)

// Login flag modes for RealmConfig.LoginFlag
const (
	LoginFlagRequired = "required"
	LoginFlagIgnored  = "ignored"
)

// RealmConfig overrides a realm's default policy. Empty values keep the
// default. Boolean switches can only turn a feature on.
type RealmConfig struct {
	AutoCreate bool `env:"AUTO_CREATE" env-default:"false" env-description:"provision accounts on first login (never for backend)"`

	RequireGroupMembership bool     `env:"REQUIRE_GROUP" env-default:"false"`
	GroupPrefix            string   `env:"GROUP_PREFIX"`
	GroupAllowList         []string `env:"GROUP_ALLOW_LIST" env-separator:","`

	RequireSubsectionMembership bool     `env:"REQUIRE_SUBSECTION" env-default:"false"`
	SubsectionPrefix            string   `env:"SUBSECTION_PREFIX"`
	SubsectionAllowList         []string `env:"SUBSECTION_ALLOW_LIST" env-separator:","`

	// LoginFlag is "required", "ignored" or empty for the realm default.
	LoginFlag            string `env:"LOGIN_FLAG"`
	AllowLoginIfDisabled bool   `env:"ALLOW_LOGIN_IF_DISABLED" env-default:"false"`

	DefaultTargetPath  string `env:"TARGET_PATH"`
	DefaultFailurePath string `env:"FAILURE_PATH"`

	Scopes     []string          `env:"SCOPES" env-separator:","`
	AuthParams map[string]string `env:"AUTH_PARAMS"`
	SyncClaims []string          `env:"SYNC_CLAIMS" env-separator:","`
}

// ToPolicy applies the overrides on top of base.
func (rc RealmConfig) ToPolicy(base realm.Policy) (realm.Policy, error) {
	p := base.Clone()
	if err := copier.CopyWithOption(&p, &rc, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
		return realm.Policy{}, fmt.Errorf("failed to apply %s policy: %w", base.Realm, err)
	}

	switch strings.ToLower(strings.TrimSpace(rc.LoginFlag)) {
	case "":
	case LoginFlagRequired:
		p.RequireLoginFlag = true
	case LoginFlagIgnored:
		p.RequireLoginFlag = false
	default:
		return realm.Policy{}, fmt.Errorf("%s: unknown login flag mode %q", base.Realm, rc.LoginFlag)
	}

	for _, path := range []string{p.DefaultTargetPath, p.DefaultFailurePath} {
		if !authflow.IsLocalPath(path) {
			return realm.Policy{}, fmt.Errorf("%s: default path %q is not local", base.Realm, path)
		}
	}
	if p.RequireGroupMembership && (p.GroupPrefix == "" || len(p.GroupAllowList) == 0) {
		return realm.Policy{}, fmt.Errorf("%s: group membership requires a prefix and an allow list", base.Realm)
	}
	if p.RequireSubsectionMembership && (p.SubsectionPrefix == "" || len(p.SubsectionAllowList) == 0) {
		return realm.Policy{}, fmt.Errorf("%s: subsection membership requires a prefix and an allow list", base.Realm)
	}
	return p, nil
}

// Policies builds the realm policies from the defaults and the overrides.
func (c Config) Policies() (realm.Policies, error) {
	defaults := realm.DefaultPolicies()
	out := make(realm.Policies, len(defaults))
	for r, rc := range map[realm.Realm]RealmConfig{realm.Frontend: c.Frontend, realm.Backend: c.Backend} {
		p, err := rc.ToPolicy(defaults.For(r))
		if err != nil {
			return nil, err
		}
		out[r] = p
	}
	return out, nil
}
