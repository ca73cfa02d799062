package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

)

type fakeIDP struct {
	t          *testing.T
	challenge  string
	tokenCode  int
	tokenBody  string
	userCode   int
	userBody   string
	lastForm   url.Values
	lastBearer string
}

func (f *fakeIDP) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		f.lastForm = r.PostForm
		if f.challenge != "" {
			if oauth2.S256ChallengeFromVerifier(r.PostForm.Get("code_verifier")) != f.challenge {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"pkce mismatch"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenCode)
		_, _ = w.Write([]byte(f.tokenBody))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.lastBearer = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userCode)
		_, _ = w.Write([]byte(f.userBody))
	})
	return mux
}

func newFakeIDP(t *testing.T) (*fakeIDP, *httptest.Server) {
	f := &fakeIDP{
		t:         t,
		tokenCode: http.StatusOK,
		tokenBody: `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`,
		userCode:  http.StatusOK,
		userBody:  `{"sub":"abc","email":"x@y.com","name":"X Y","roles":"PREFIX_00007","org":"acme"}`,
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func testConfig(base string) Config {
	return Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      base + "/authorize",
		TokenURL:     base + "/token",
		UserInfoURL:  base + "/userinfo",
		RedirectURL:  "https://app.example.com/sso/frontend/callback",
		Scopes:       []string{"openid", "email"},
		UsePKCE:      true,
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveProviderRequest(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+outcome)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig("https://idp.example.com")
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.ClientID = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.TokenURL = "/relative"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.AuthStyle = "auto"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ClientSecret = ""
	assert.NoError(t, bad.Validate(), "public clients with PKCE need no secret")
	bad.UsePKCE = false
	assert.Error(t, bad.Validate())
}

func TestBuildAuthorizationURL(t *testing.T) {
	c, err := NewClient(testConfig("https://idp.example.com"))
	require.NoError(t, err)

	verifier := oauth2.GenerateVerifier()
	raw, err := c.BuildAuthorizationURL("T", verifier, nil, map[string]string{"prompt": "login", "state": "evil"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "T", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))

	raw, err = c.BuildAuthorizationURL("T", "", []string{"openid", "roles"}, nil)
	require.NoError(t, err)
	u, _ = url.Parse(raw)
	assert.Equal(t, "openid roles", u.Query().Get("scope"))
	assert.Empty(t, u.Query().Get("code_challenge"))

	_, err = c.BuildAuthorizationURL("", "", nil, nil)
	assert.Error(t, err)
}

func TestExchangeAndFetch(t *testing.T) {
	idp, srv := newFakeIDP(t)
	obs := &recordingObserver{}
	c, err := NewClient(testConfig(srv.URL), WithHTTPClient(srv.Client()), WithObserver(obs))
	require.NoError(t, err)

	verifier := oauth2.GenerateVerifier()
	idp.challenge = oauth2.S256ChallengeFromVerifier(verifier)

	tok, err := c.ExchangeCode(context.Background(), "the-code", verifier)
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "authorization_code", idp.lastForm.Get("grant_type"))
	assert.Equal(t, "the-code", idp.lastForm.Get("code"))
	assert.Equal(t, "client", idp.lastForm.Get("client_id"))
	assert.Equal(t, "secret", idp.lastForm.Get("client_secret"))

	c2, err := c.FetchIdentity(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-1", idp.lastBearer)
	assert.Equal(t, "abc", c2.SubjectID)
	assert.Equal(t, "x@y.com", c2.Email)
	assert.Equal(t, []string{"PREFIX_00007"}, c2.Roles)
	assert.Equal(t, "acme", c2.StringClaim("org"))

	assert.Equal(t, []string{"exchange:ok", "userinfo:ok"}, obs.calls)
}

func TestExchangeRejected(t *testing.T) {
	idp, srv := newFakeIDP(t)
	idp.tokenCode = http.StatusBadRequest
	idp.tokenBody = `{"error":"invalid_grant","error_description":"code expired"}`

	c, err := NewClient(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.ExchangeCode(context.Background(), "stale", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityProvider))

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindRejected, pe.Kind)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Equal(t, "code expired", pe.Description)
}

func TestExchangeMalformed(t *testing.T) {
	idp, srv := newFakeIDP(t)
	idp.tokenBody = `{"token_type":"Bearer"}`

	c, err := NewClient(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.ExchangeCode(context.Background(), "code", "")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)
}

func TestExchangeTransport(t *testing.T) {
	_, srv := newFakeIDP(t)
	cfg := testConfig(srv.URL)
	srv.Close()

	obs := &recordingObserver{}
	c, err := NewClient(cfg, WithObserver(obs))
	require.NoError(t, err)

	_, err = c.ExchangeCode(context.Background(), "code", "")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindTransport, pe.Kind)
	assert.True(t, errors.Is(err, ErrIdentityProvider))
	assert.Equal(t, []string{"exchange:transport"}, obs.calls)
}

func TestFetchIdentityErrors(t *testing.T) {
	idp, srv := newFakeIDP(t)
	c, err := NewClient(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	tok := &oauth2.Token{AccessToken: "at"}

	idp.userCode = http.StatusUnauthorized
	idp.userBody = `{"error":"invalid_token"}`
	_, err = c.FetchIdentity(context.Background(), tok)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindRejected, pe.Kind)
	assert.Equal(t, "invalid_token", pe.Code)

	idp.userCode = http.StatusOK
	idp.userBody = `not json`
	_, err = c.FetchIdentity(context.Background(), tok)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)

	_, err = c.FetchIdentity(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrIdentityProvider))
}

func TestFetchIdentityKeepsLargeNumericSubject(t *testing.T) {
	idp, srv := newFakeIDP(t)
	idp.userBody = `{"sub":123456789012345678,"email":"x@y.com"}`
	c, err := NewClient(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	got, err := c.FetchIdentity(context.Background(), &oauth2.Token{AccessToken: "at"})
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678", got.SubjectID)
}

func TestErrorLogAttrs(t *testing.T) {
	e := &Error{Op: OpExchange, Kind: KindRejected, StatusCode: 400, Code: "invalid_grant", Description: "nope"}
	b, err := json.Marshal(e.LogAttrs())
	require.NoError(t, err)
	assert.Contains(t, string(b), "invalid_grant")
	assert.Contains(t, e.Error(), "status 400")
}
