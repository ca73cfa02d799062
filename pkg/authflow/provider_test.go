package authflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/claims"
	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/flowstate"
	"github.com/tendant/simple-sso/pkg/metrics"
	"github.com/tendant/simple-sso/pkg/provider"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

// idp is a minimal authorization server: it remembers the PKCE challenge
// from the authorization request and checks it on the token call.
type idp struct {
	t         *testing.T
	challenge string
	userinfo  string
}

func (i *idp) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(i.t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" || oauth2.S256ChallengeFromVerifier(r.PostForm.Get("code_verifier")) != i.challenge {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":300}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(i.userinfo))
	})
	return mux
}

func TestAuthenticator_AgainstIdentityProvider(t *testing.T) {
	i := &idp{t: t, userinfo: `{"sub":"abc","email":"x@y.com","name":"X Y","roles":"A,PREFIX_00007,B"}`}
	srv := httptest.NewServer(i.handler())
	defer srv.Close()

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	client, err := provider.NewClient(provider.Config{
		ClientID:    "client",
		AuthURL:     srv.URL + "/authorize",
		TokenURL:    srv.URL + "/token",
		UserInfoURL: srv.URL + "/userinfo",
		RedirectURL: "https://app.example.com/sso/frontend/callback",
		UsePKCE:     true,
		Claims:      claims.DefaultMapping(),
	}, provider.WithHTTPClient(srv.Client()), provider.WithObserver(rec))
	require.NoError(t, err)

	policies := realm.DefaultPolicies()
	fe := policies[realm.Frontend]
	fe.GroupPrefix = "PREFIX"
	fe.RequireGroupMembership = true
	fe.GroupAllowList = []string{"7"}
	fe.AutoCreate = true
	policies[realm.Frontend] = fe

	bus := events.NewBus()
	require.NoError(t, bus.Subscribe("metrics", rec))

	repo := account.NewInMemoryRepository()
	auth, err := New(Deps{
		Flows:    flowstate.NewStore(flowstate.NewMemorySessionStore(time.Hour)),
		Provider: client,
		Accounts: account.NewResolver(repo),
		Policies: policies,
		Events:   bus,
	})
	require.NoError(t, err)

	ctx := context.Background()
	start := func() string {
		res, err := auth.Start(ctx, StartRequest{SessionID: "s", Realm: realm.Frontend, TargetPath: "/home", FailurePath: "/login"})
		require.NoError(t, err)
		u, err := url.Parse(res.RedirectURL)
		require.NoError(t, err)
		assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
		i.challenge = u.Query().Get("code_challenge")
		return u.Query().Get("state")
	}

	state := start()
	out := auth.Callback(ctx, CallbackRequest{SessionID: "s", Realm: realm.Frontend, State: state, Code: "bad-code", Language: language.English})
	assert.Equal(t, reason.IdentityProviderError, out.Reason)
	assert.Equal(t, "/login", out.RedirectPath)

	state = start()
	out = auth.Callback(ctx, CallbackRequest{SessionID: "s", Realm: realm.Frontend, State: state, Code: "good-code", Language: language.English})
	require.True(t, out.Succeeded, "reason %s", out.Reason)
	assert.Equal(t, "/home", out.RedirectPath)
	assert.Equal(t, "x@y.com", out.Identifier)
	require.Len(t, repo.All(), 1)

	expected := `
# HELP sso_login_aborted_total Aborted login attempts by realm and reason.
# TYPE sso_login_aborted_total counter
sso_login_aborted_total{realm="frontend",reason="IdentityProviderError"} 1
# HELP sso_login_succeeded_total Successful logins by realm.
# TYPE sso_login_succeeded_total counter
sso_login_succeeded_total{realm="frontend"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sso_login_aborted_total", "sso_login_succeeded_total"))
	series, err := testutil.GatherAndCount(reg, "sso_provider_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, series, "rejected exchange, exchange, userinfo")
}
