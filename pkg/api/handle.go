package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/text/language"

	"github.com/tendant/simple-sso/pkg/authflow"
	"github.com/tendant/simple-sso/pkg/flowstate"
	"github.com/tendant/simple-sso/pkg/ratelimit"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/sessiontoken"
)

// ContextFieldPrefix marks start parameters that are carried through the
// flow as caller context.
const ContextFieldPrefix = "ctx_"

// Flow is the orchestrator as seen by the handlers.
type Flow interface {
	Start(ctx context.Context, req authflow.StartRequest) (*authflow.StartResult, error)
	Callback(ctx context.Context, req authflow.CallbackRequest) *authflow.Outcome
}

// FlashStore keeps the one-shot failure message.
type FlashStore interface {
	SetFlash(ctx context.Context, sessionID string, r realm.Realm, f flowstate.Flash) error
	PopFlash(ctx context.Context, sessionID string, r realm.Realm) (flowstate.Flash, bool, error)
}

// LanguageResolver picks the message language for a request.
type LanguageResolver interface {
	ResolveTag(r *http.Request) language.Tag
}

// Handle implements ServerInterface for the login endpoints.
type Handle struct {
	flow     Flow
	flash    FlashStore
	lang     LanguageResolver
	issuer   *sessiontoken.Issuer
	throttle *ratelimit.AbortThrottle
	session  sessionCookie
}

// Option configures a Handle
type Option func(*Handle)

// WithIssuer sets the login token cookie on successful logins and enables
// the /me and /logout endpoints.
func WithIssuer(issuer *sessiontoken.Issuer) Option {
	return func(h *Handle) {
		h.issuer = issuer
	}
}

// WithThrottle rejects login starts from clients that exhausted their abort
// budget.
func WithThrottle(t *ratelimit.AbortThrottle) Option {
	return func(h *Handle) {
		h.throttle = t
	}
}

// WithSessionCookie sets the session cookie name and Secure flag.
func WithSessionCookie(name string, secure bool) Option {
	return func(h *Handle) {
		h.session.name = name
		h.session.secure = secure
	}
}

// NewHandle creates the HTTP handlers.
func NewHandle(flow Flow, flash FlashStore, lang LanguageResolver, opts ...Option) *Handle {
	h := &Handle{
		flow:    flow,
		flash:   flash,
		lang:    lang,
		session: sessionCookie{name: DefaultSessionCookieName},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ ServerInterface = (*Handle)(nil)

// RealmFromRequest reads the {realm} URL parameter.
func RealmFromRequest(r *http.Request) (realm.Realm, bool) {
	rl, err := realm.Parse(chi.URLParam(r, "realm"))
	return rl, err == nil
}

var errUnknownRealm = Error{Error: "unknown_realm", ErrorDescription: "Unknown realm"}

// decodeTarget reads a base64 encoded path in any of the common alphabets.
func decodeTarget(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(v); err == nil {
			return string(b), nil
		}
	}
	return "", errors.New("target is not base64 encoded")
}

// decodeFailure accepts a plain local path or a base64 encoded one.
func decodeFailure(v string) (string, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "/") {
		return v, nil
	}
	return decodeTarget(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StartLogin implements ServerInterface.StartLogin
func (h *Handle) StartLogin(w http.ResponseWriter, r *http.Request, rp Realm, params StartLoginParams) *Response {
	rl, err := realm.Parse(string(rp))
	if err != nil {
		return StartLoginJSON404Response(errUnknownRealm)
	}
	resp, _ := h.startLogin(w, r, rl, StartForm{Target: params.Target, Failure: params.Failure}, r.URL.Query())
	return resp
}

// SubmitStartLogin implements ServerInterface.SubmitStartLogin
func (h *Handle) SubmitStartLogin(w http.ResponseWriter, r *http.Request, rp Realm) *Response {
	rl, err := realm.Parse(string(rp))
	if err != nil {
		return SubmitStartLoginJSON404Response(errUnknownRealm)
	}
	if err := r.ParseForm(); err != nil {
		return SubmitStartLoginJSON400Response(Error{Error: "invalid_request", ErrorDescription: "Malformed request"})
	}
	body := SubmitStartLoginFormdataRequestBody{
		Target:  optional(r.Form.Get("target")),
		Failure: optional(r.Form.Get("failure")),
	}
	resp, _ := h.startLogin(w, r, rl, StartForm(body), r.Form)
	return resp
}

// startLogin redirects to the provider and reports true, or returns the
// error response. GET and POST share the same error statuses.
func (h *Handle) startLogin(w http.ResponseWriter, r *http.Request, rl realm.Realm, form StartForm, fields url.Values) (*Response, bool) {
	target, err := decodeTarget(deref(form.Target))
	if err != nil {
		return StartLoginJSON400Response(Error{Error: "invalid_request", ErrorDescription: err.Error()}), false
	}
	failure, err := decodeFailure(deref(form.Failure))
	if err != nil {
		return StartLoginJSON400Response(Error{Error: "invalid_request", ErrorDescription: "failure path is not valid"}), false
	}

	flowCtx := map[string]string{}
	for k, vs := range fields {
		if name, found := strings.CutPrefix(k, ContextFieldPrefix); found && name != "" && len(vs) > 0 {
			flowCtx[name] = vs[0]
		}
	}

	res, err := h.flow.Start(r.Context(), authflow.StartRequest{
		SessionID:   SessionID(r.Context()),
		Realm:       rl,
		TargetPath:  target,
		FailurePath: failure,
		Context:     flowCtx,
	})
	if errors.Is(err, authflow.ErrInvalidPath) {
		return StartLoginJSON400Response(Error{Error: "invalid_request", ErrorDescription: "Target and failure paths must be local"}), false
	}
	if err != nil {
		slog.Error("Failed to start login", "realm", rl, "err", err)
		return StartLoginJSON500Response(Error{Error: "internal_error", ErrorDescription: "Failed to start login"}), false
	}

	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
	return nil, true
}

// HandleCallback implements ServerInterface.HandleCallback
func (h *Handle) HandleCallback(w http.ResponseWriter, r *http.Request, rp Realm, params HandleCallbackParams) *Response {
	rl, err := realm.Parse(string(rp))
	if err != nil {
		return HandleCallbackJSON404Response(errUnknownRealm)
	}
	sessionID := SessionID(r.Context())

	out := h.flow.Callback(r.Context(), authflow.CallbackRequest{
		SessionID:                sessionID,
		Realm:                    rl,
		State:                    deref(params.State),
		Code:                     deref(params.Code),
		ProviderError:            deref(params.Error),
		ProviderErrorDescription: deref(params.ErrorDescription),
		Language:                 h.lang.ResolveTag(r),
		RemoteAddr:               ratelimit.ClientIP(r),
	})

	if out.Succeeded {
		if h.issuer != nil {
			if err := h.issuer.SetCookie(w, rl, out.AccountID, out.Identifier); err != nil {
				slog.Error("Failed to set login cookie", "realm", rl, "identifier", out.Identifier, "err", err)
				return HandleCallbackJSON500Response(Error{Error: "internal_error", ErrorDescription: "Failed to establish session"})
			}
		}
		http.Redirect(w, r, out.RedirectPath, http.StatusFound)
		return nil
	}

	err = h.flash.SetFlash(r.Context(), sessionID, rl, flowstate.Flash{
		Reason:      out.Reason.String(),
		Matter:      out.Message.Matter,
		HowToFix:    out.Message.HowToFix,
		Explanation: out.Message.Explanation,
	})
	if err != nil {
		slog.Warn("Failed to store flash message", "realm", rl, "reason", out.Reason, "err", err)
	}
	http.Redirect(w, r, out.RedirectPath, http.StatusFound)
	return nil
}

// GetFlash implements ServerInterface.GetFlash and returns the pending
// message once.
func (h *Handle) GetFlash(w http.ResponseWriter, r *http.Request, rp Realm) *Response {
	rl, err := realm.Parse(string(rp))
	if err != nil {
		return GetFlashJSON404Response(errUnknownRealm)
	}
	f, found, err := h.flash.PopFlash(r.Context(), SessionID(r.Context()), rl)
	if err != nil {
		slog.Error("Failed to read flash message", "realm", rl, "err", err)
		return GetFlashJSON500Response(Error{Error: "internal_error", ErrorDescription: "Failed to read message"})
	}
	if !found {
		return &Response{Code: http.StatusNoContent}
	}
	return GetFlashJSON200Response(FlashMessage{
		Reason:      f.Reason,
		Matter:      f.Matter,
		HowToFix:    optional(f.HowToFix),
		Explanation: optional(f.Explanation),
	})
}

var errLoginTokensDisabled = Error{Error: "not_found", ErrorDescription: "Login tokens are not enabled"}

// GetMe implements ServerInterface.GetMe
func (h *Handle) GetMe(w http.ResponseWriter, r *http.Request) *Response {
	if h.issuer == nil {
		return GetMeJSON404Response(errLoginTokensDisabled)
	}
	user, ok := sessiontoken.FromContext(r.Context())
	if !ok {
		slog.Error("Failed getting LoginUser", "ok", ok)
		return GetMeJSON401Response(Error{Error: "unauthorized", ErrorDescription: "No valid login token"})
	}
	return GetMeJSON200Response(LoginUser{
		Realm:      user.Realm,
		AccountID:  user.AccountID,
		Identifier: user.Identifier,
	})
}

// Logout implements ServerInterface.Logout
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) *Response {
	if h.issuer == nil {
		return LogoutJSON404Response(errLoginTokensDisabled)
	}
	h.issuer.ClearCookie(w)
	return &Response{Code: http.StatusNoContent}
}

// paramError reports parameters the router could not bind.
func paramError(w http.ResponseWriter, r *http.Request, err error) {
	resp := &Response{
		body:        Error{Error: "invalid_request", ErrorDescription: err.Error()},
		Code:        http.StatusBadRequest,
		contentType: "application/json",
	}
	render.Render(w, r, resp)
}
