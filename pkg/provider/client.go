// Package provider talks to an external OAuth2/OIDC identity provider: it
// builds the authorization URL, exchanges the code and fetches userinfo.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tendant/simple-sso/pkg/claims"
)

// Operation names reported to observers.
const (
	OpExchange = "exchange"
	OpUserInfo = "userinfo"
)

const maxBodySize = 1 << 20

// Observer receives the duration of every outbound provider request.
// outcome is "ok" or the Kind of the failure.
type Observer interface {
	ObserveProviderRequest(op, outcome string, d time.Duration)
}

// Client is an OAuth2 authorization-code client. It never retries.
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for token and userinfo calls.
// Timeouts belong here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver registers a request duration observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	c := &Client{
		cfg:        cfg,
		oauth:      cfg.oauth2Config(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildAuthorizationURL returns the provider authorization URL. state must
// already be persisted by the caller. A non-empty verifier adds an S256 PKCE
// challenge when PKCE is enabled. Non-empty scopes replace the configured ones.
func (c *Client) BuildAuthorizationURL(state, verifier string, scopes []string, extra map[string]string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("state is required")
	}
	cfg := c.oauth
	if len(scopes) > 0 {
		cp := *c.oauth
		cp.Scopes = scopes
		cfg = &cp
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(extra)+1)
	for k, v := range extra {
		switch k {
		case "state", "client_id", "redirect_uri", "response_type", "scope", "code_challenge", "code_challenge_method":
			slog.Warn("Ignoring reserved authorization parameter", "param", k)
			continue
		}
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	if c.cfg.UsePKCE && verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// ExchangeCode trades an authorization code for a token.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	start := time.Now()
	if code == "" {
		return nil, c.fail(OpExchange, start, &Error{Op: OpExchange, Kind: KindMalformed, Err: errors.New("empty authorization code")})
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	var opts []oauth2.AuthCodeOption
	if c.cfg.UsePKCE && verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, c.fail(OpExchange, start, classifyExchangeError(err))
	}
	if !tok.Valid() {
		return nil, c.fail(OpExchange, start, &Error{Op: OpExchange, Kind: KindMalformed, Err: errors.New("token response missing access token")})
	}

	c.observe(OpExchange, "ok", start)
	return tok, nil
}

// FetchIdentity calls the userinfo endpoint with the access token.
func (c *Client) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*claims.IdentityClaims, error) {
	start := time.Now()
	if tok == nil || tok.AccessToken == "" {
		return nil, c.fail(OpUserInfo, start, &Error{Op: OpUserInfo, Kind: KindMalformed, Err: errors.New("missing access token")})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, c.fail(OpUserInfo, start, &Error{Op: OpUserInfo, Kind: KindTransport, Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(OpUserInfo, start, &Error{Op: OpUserInfo, Kind: KindTransport, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(OpUserInfo, start, &Error{Op: OpUserInfo, Kind: KindTransport, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &Error{Op: OpUserInfo, Kind: KindRejected, StatusCode: resp.StatusCode}
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			pe.Code = oauthErr.Error
			pe.Description = oauthErr.ErrorDescription
		} else if ch := resp.Header.Get("WWW-Authenticate"); ch != "" {
			pe.Description = ch
		}
		return nil, c.fail(OpUserInfo, start, pe)
	}

	raw := make(map[string]any)
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, c.fail(OpUserInfo, start, &Error{Op: OpUserInfo, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse user info: %w", err)})
	}

	c.observe(OpUserInfo, "ok", start)
	return claims.FromUserInfo(raw, c.cfg.Claims), nil
}

func (c *Client) fail(op string, start time.Time, e *Error) error {
	c.observe(op, string(e.Kind), start)
	return e
}

func (c *Client) observe(op, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveProviderRequest(op, outcome, time.Since(start))
	}
}

// classifyExchangeError maps x/oauth2 errors onto Kind.
func classifyExchangeError(err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		e := &Error{
			Op:          OpExchange,
			Kind:        KindRejected,
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
			Err:         err,
		}
		if re.Response != nil {
			e.StatusCode = re.Response.StatusCode
		}
		return e
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Op: OpExchange, Kind: KindTransport, Err: err}
	}
	return &Error{Op: OpExchange, Kind: KindMalformed, Err: err}
}
