// Package claims maps a provider's userinfo document onto typed identity claims.
package claims

import (
	"fmt"
	"strings"
)

// IdentityClaims is the remote principal returned by the userinfo endpoint.
// It lives for a single flow and is never persisted by the core.
type IdentityClaims struct {
	SubjectID string
	Email     string
	FullName  string
	FirstName string
	LastName  string
	Roles     []string

	// Extra holds every claim not mapped above, verbatim.
	Extra map[string]any
}

// Mapping names the userinfo claims that feed the typed fields.
type Mapping struct {
	Subject    string
	Email      string
	FullName   string
	FirstName  string
	LastName   string
	Roles      string
	RolesDelim string
}

// DefaultMapping returns standard OIDC claim names.
func DefaultMapping() Mapping {
	return Mapping{
		Subject:    "sub",
		Email:      "email",
		FullName:   "name",
		FirstName:  "given_name",
		LastName:   "family_name",
		Roles:      "roles",
		RolesDelim: ",",
	}
}

func (m Mapping) withDefaults() Mapping {
	d := DefaultMapping()
	if m.Subject == "" {
		m.Subject = d.Subject
	}
	if m.Email == "" {
		m.Email = d.Email
	}
	if m.FullName == "" {
		m.FullName = d.FullName
	}
	if m.FirstName == "" {
		m.FirstName = d.FirstName
	}
	if m.LastName == "" {
		m.LastName = d.LastName
	}
	if m.Roles == "" {
		m.Roles = d.Roles
	}
	if m.RolesDelim == "" {
		m.RolesDelim = d.RolesDelim
	}
	return m
}

// FromUserInfo builds IdentityClaims from a decoded userinfo document.
func FromUserInfo(raw map[string]any, m Mapping) *IdentityClaims {
	m = m.withDefaults()
	c := &IdentityClaims{
		SubjectID: strings.TrimSpace(getStringValue(raw, m.Subject)),
		Email:     strings.TrimSpace(getStringValue(raw, m.Email)),
		FullName:  getStringValue(raw, m.FullName),
		FirstName: getStringValue(raw, m.FirstName),
		LastName:  getStringValue(raw, m.LastName),
		Roles:     rolesValue(raw[m.Roles], m.RolesDelim),
		Extra:     make(map[string]any),
	}

	mapped := map[string]bool{
		m.Subject: true, m.Email: true, m.FullName: true,
		m.FirstName: true, m.LastName: true, m.Roles: true,
	}
	for k, v := range raw {
		if !mapped[k] {
			c.Extra[k] = v
		}
	}

	if c.FullName == "" && (c.FirstName != "" || c.LastName != "") {
		c.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return c
}

// HasSubject reports whether the claims identify a remote principal.
func (c *IdentityClaims) HasSubject() bool {
	return c != nil && c.SubjectID != ""
}

// RolesString joins roles with a comma, the form most providers send.
func (c *IdentityClaims) RolesString() string {
	return strings.Join(c.Roles, ",")
}

// Claim returns an unmapped claim.
func (c *IdentityClaims) Claim(name string) (any, bool) {
	if c == nil || c.Extra == nil {
		return nil, false
	}
	v, ok := c.Extra[name]
	return v, ok
}

// StringClaim returns a named claim as a string, looking at the typed fields
// first. Missing claims yield "".
func (c *IdentityClaims) StringClaim(name string) string {
	switch name {
	case "sub":
		return c.SubjectID
	case "email":
		return c.Email
	case "name":
		return c.FullName
	case "given_name":
		return c.FirstName
	case "family_name":
		return c.LastName
	case "roles":
		return c.RolesString()
	}
	v, ok := c.Claim(name)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func getStringValue(data map[string]any, key string) string {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

// rolesValue accepts a delimited string or an array of strings.
func rolesValue(v any, delim string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case string:
		for _, s := range strings.Split(t, delim) {
			add(s)
		}
	case []string:
		for _, s := range t {
			add(s)
		}
	case []any:
		for _, s := range t {
			if str, ok := s.(string); ok {
				add(str)
			}
		}
	}
	return out
}
