package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-sso/pkg/authflow"
	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/flowstate"
	"github.com/tendant/simple-sso/pkg/i18n"
	"github.com/tendant/simple-sso/pkg/ratelimit"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
	"github.com/tendant/simple-sso/pkg/sessiontoken"
)

type fakeFlow struct {
	startErr  error
	starts    []authflow.StartRequest
	callbacks []authflow.CallbackRequest
	outcome   *authflow.Outcome
}

func (f *fakeFlow) Start(_ context.Context, req authflow.StartRequest) (*authflow.StartResult, error) {
	f.starts = append(f.starts, req)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &authflow.StartResult{RedirectURL: "https://idp.example.com/authorize?state=T", State: "T"}, nil
}

func (f *fakeFlow) Callback(_ context.Context, req authflow.CallbackRequest) *authflow.Outcome {
	f.callbacks = append(f.callbacks, req)
	return f.outcome
}

type testServer struct {
	flow   *fakeFlow
	flows  *flowstate.Store
	router http.Handler
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	ts := &testServer{
		flow:  &fakeFlow{},
		flows: flowstate.NewStore(flowstate.NewMemorySessionStore(time.Hour)),
	}
	h := NewHandle(ts.flow, ts.flows, i18n.MustLoadEmbedded(), opts...)
	r := chi.NewRouter()
	r.Mount("/sso", Routes(h))
	ts.router = r
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func sessionCookieFor(id string) *http.Cookie {
	return &http.Cookie{Name: DefaultSessionCookieName, Value: id}
}

func TestStartLogin_Get(t *testing.T) {
	ts := newTestServer(t)
	target := base64.URLEncoding.EncodeToString([]byte("/home?tab=2"))

	req := httptest.NewRequest(http.MethodGet, "/sso/frontend/start?target="+url.QueryEscape(target)+"&failure=/login&ctx_module=42&other=x", nil)
	w := ts.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.example.com/authorize?state=T", w.Header().Get("Location"))

	require.Len(t, ts.flow.starts, 1)
	got := ts.flow.starts[0]
	assert.Equal(t, realm.Frontend, got.Realm)
	assert.Equal(t, "/home?tab=2", got.TargetPath)
	assert.Equal(t, "/login", got.FailurePath)
	assert.Equal(t, map[string]string{"module": "42"}, got.Context)
	_, err := uuid.Parse(got.SessionID)
	assert.NoError(t, err, "a session id is issued")

	var issued *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == DefaultSessionCookieName {
			issued = c
		}
	}
	require.NotNil(t, issued)
	assert.Equal(t, got.SessionID, issued.Value)
	assert.Equal(t, http.SameSiteLaxMode, issued.SameSite)
}

func TestStartLogin_PostKeepsSession(t *testing.T) {
	ts := newTestServer(t)
	sid := uuid.NewString()
	form := url.Values{
		"target":     {base64.RawStdEncoding.EncodeToString([]byte("/admin/pages"))},
		"failure":    {base64.StdEncoding.EncodeToString([]byte("/admin/login"))},
		"ctx_tenant": {"acme"},
	}

	req := httptest.NewRequest(http.MethodPost, "/sso/backend/start", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookieFor(sid))
	w := ts.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, ts.flow.starts, 1)
	assert.Equal(t, sid, ts.flow.starts[0].SessionID)
	assert.Equal(t, "/admin/pages", ts.flow.starts[0].TargetPath)
	assert.Equal(t, "/admin/login", ts.flow.starts[0].FailurePath)
	assert.Equal(t, map[string]string{"tenant": "acme"}, ts.flow.starts[0].Context)
	assert.Empty(t, w.Result().Cookies(), "existing session is reused")
}

func TestStartLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		startErr error
		want     int
	}{
		{"unknown realm", "/sso/intranet/start", nil, http.StatusNotFound},
		{"target not base64", "/sso/frontend/start?target=!!!", nil, http.StatusBadRequest},
		{"remote target", "/sso/frontend/start", authflow.ErrInvalidPath, http.StatusBadRequest},
		{"store failure", "/sso/frontend/start", errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.flow.startErr = tt.startErr
			w := ts.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCallback_SuccessSetsLoginCookie(t *testing.T) {
	key, err := sessiontoken.DeriveKey([]byte("0123456789abcdef0123456789abcdef"), "login-token")
	require.NoError(t, err)
	issuer := sessiontoken.NewIssuer(key, sessiontoken.WithCookie("sso_login", false))
	ts := newTestServer(t, WithIssuer(issuer))
	accountID := uuid.New()
	ts.flow.outcome = &authflow.Outcome{Succeeded: true, RedirectPath: "/home", AccountID: accountID, Identifier: "x@y.com"}
	sid := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/sso/frontend/callback?state=T&code=C", nil)
	req.AddCookie(sessionCookieFor(sid))
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	req.RemoteAddr = "10.1.2.3:5555"
	w := ts.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/home", w.Header().Get("Location"))
	require.Len(t, ts.flow.callbacks, 1)
	cb := ts.flow.callbacks[0]
	assert.Equal(t, "T", cb.State)
	assert.Equal(t, "C", cb.Code)
	assert.Equal(t, sid, cb.SessionID)
	assert.Equal(t, "10.1.2.3", cb.RemoteAddr)
	base, _ := cb.Language.Base()
	assert.Equal(t, "de", base.String())

	var login *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "sso_login" {
			login = c
		}
	}
	require.NotNil(t, login)

	me := httptest.NewRequest(http.MethodGet, "/sso/me", nil)
	me.AddCookie(login)
	mw := ts.do(me)
	require.Equal(t, http.StatusOK, mw.Code)
	var user sessiontoken.LoginUser
	require.NoError(t, json.NewDecoder(mw.Body).Decode(&user))
	assert.Equal(t, "x@y.com", user.Identifier)
	assert.Equal(t, accountID.String(), user.AccountID)
	assert.Equal(t, "frontend", user.Realm)

	assert.Equal(t, http.StatusUnauthorized, ts.do(httptest.NewRequest(http.MethodGet, "/sso/me", nil)).Code)
}

func TestCallback_FailureStoresFlash(t *testing.T) {
	ts := newTestServer(t)
	ts.flow.outcome = &authflow.Outcome{
		Final:        authflow.Aborted,
		Reason:       reason.InvalidEmail,
		RedirectPath: "/login",
		Message:      i18n.Message{Matter: "No valid email", HowToFix: "Add one"},
	}
	sid := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/sso/frontend/callback?state=T&code=C", nil)
	req.AddCookie(sessionCookieFor(sid))
	w := ts.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	flash := httptest.NewRequest(http.MethodGet, "/sso/frontend/flash", nil)
	flash.AddCookie(sessionCookieFor(sid))
	fw := ts.do(flash)
	require.Equal(t, http.StatusOK, fw.Code)
	var f flowstate.Flash
	require.NoError(t, json.NewDecoder(fw.Body).Decode(&f))
	assert.Equal(t, "InvalidEmail", f.Reason)
	assert.Equal(t, "No valid email", f.Matter)

	again := httptest.NewRequest(http.MethodGet, "/sso/frontend/flash", nil)
	again.AddCookie(sessionCookieFor(sid))
	assert.Equal(t, http.StatusNoContent, ts.do(again).Code, "flash is one-shot")

	other := httptest.NewRequest(http.MethodGet, "/sso/backend/flash", nil)
	other.AddCookie(sessionCookieFor(sid))
	assert.Equal(t, http.StatusNoContent, ts.do(other).Code)
}

func TestCallback_ProviderErrorParamsPassedThrough(t *testing.T) {
	ts := newTestServer(t)
	ts.flow.outcome = &authflow.Outcome{Reason: reason.IdentityProviderError, RedirectPath: "/login"}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/sso/frontend/callback?state=T&error=access_denied&error_description=nope", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, ts.flow.callbacks, 1)
	assert.Equal(t, "access_denied", ts.flow.callbacks[0].ProviderError)
	assert.Equal(t, "nope", ts.flow.callbacks[0].ProviderErrorDescription)
	assert.NotContains(t, w.Header().Get("Location"), "access_denied")
}

func TestStartLogin_Throttled(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th := ratelimit.NewAbortThrottle(ratelimit.Config{Capacity: 1, RefillRate: 1.0 / 60}, func() time.Time { return now })
	defer th.Close()
	ts := newTestServer(t, WithThrottle(th))

	require.NoError(t, th.OnLoginAborted(context.Background(), events.LoginAborted{Realm: realm.Frontend, Reason: reason.InvalidState, RemoteAddr: "10.9.9.9"}))

	req := httptest.NewRequest(http.MethodGet, "/sso/frontend/start", nil)
	req.RemoteAddr = "10.9.9.9:1234"
	w := ts.do(req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, ts.flow.starts)

	req = httptest.NewRequest(http.MethodGet, "/sso/backend/start", nil)
	req.RemoteAddr = "10.9.9.9:1234"
	assert.Equal(t, http.StatusFound, ts.do(req).Code, "other realm is not throttled")
}

func TestLogout(t *testing.T) {
	key, err := sessiontoken.DeriveKey([]byte("0123456789abcdef0123456789abcdef"), "login-token")
	require.NoError(t, err)
	ts := newTestServer(t, WithIssuer(sessiontoken.NewIssuer(key)))

	w := ts.do(httptest.NewRequest(http.MethodPost, "/sso/logout", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == sessiontoken.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestDecodeTarget(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding} {
		got, err := decodeTarget(enc.EncodeToString([]byte("/a/b?c=d")))
		require.NoError(t, err)
		assert.Equal(t, "/a/b?c=d", got)
	}
	got, err := decodeTarget("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMeAndLogoutNeedIssuer(t *testing.T) {
	ts := newTestServer(t)

	me := ts.do(httptest.NewRequest(http.MethodGet, "/sso/me", nil))
	assert.Equal(t, http.StatusNotFound, me.Code)
	var body Error
	require.NoError(t, json.NewDecoder(me.Body).Decode(&body))
	assert.Equal(t, "not_found", body.Error)

	assert.Equal(t, http.StatusNotFound, ts.do(httptest.NewRequest(http.MethodPost, "/sso/logout", nil)).Code)
}

func TestUnknownRealmReturnsJSONError(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/sso/intranet/callback?state=T", "/sso/intranet/flash"} {
		w := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		var body Error
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "unknown_realm", body.Error)
	}
	assert.Empty(t, ts.flow.callbacks)
}

func TestGetSwagger(t *testing.T) {
	swagger, err := GetSwagger()
	require.NoError(t, err)
	require.NoError(t, swagger.Validate(context.Background()))

	ops := map[string]string{}
	for path, item := range swagger.Paths {
		for method, op := range item.Operations() {
			ops[method+" "+path] = op.OperationID
		}
	}
	assert.Equal(t, map[string]string{
		"GET /{realm}/start":    "startLogin",
		"POST /{realm}/start":   "submitStartLogin",
		"GET /{realm}/callback": "handleCallback",
		"GET /{realm}/flash":    "getFlash",
		"GET /me":               "getMe",
		"POST /logout":          "logout",
	}, ops)
}

func TestOpenAPIDocumentServed(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/sso/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/{realm}/callback")
}
