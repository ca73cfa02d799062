package provider

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tendant/simple-sso/pkg/claims"
)

// Auth styles for sending client credentials to the token endpoint.
const (
	AuthStyleParams = "params"
	AuthStyleHeader = "header"
)

// Config describes one identity provider.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string

	// AuthStyle is "params" (client_id/secret in the form body) or "header"
	// (HTTP basic). Auto-detection is not offered because it repeats the
	// token request on failure.
	AuthStyle string
	UsePKCE   bool

	Claims claims.Mapping
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.ClientSecret == "" && !c.UsePKCE {
		return fmt.Errorf("client secret is required unless PKCE is enabled")
	}
	for name, raw := range map[string]string{
		"authorization URL": c.AuthURL,
		"token URL":         c.TokenURL,
		"user info URL":     c.UserInfoURL,
		"redirect URL":      c.RedirectURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
		}
	}
	switch strings.ToLower(c.AuthStyle) {
	case "", AuthStyleParams, AuthStyleHeader:
	default:
		return fmt.Errorf("unsupported auth style: %q", c.AuthStyle)
	}
	return nil
}

func (c Config) authStyle() oauth2.AuthStyle {
	if strings.ToLower(c.AuthStyle) == AuthStyleHeader {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: c.authStyle(),
		},
	}
}
