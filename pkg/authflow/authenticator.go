// Package authflow drives a login attempt from the redirect to the external
// identity provider through the callback to a local account decision.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/claims"
	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/flowstate"
	"github.com/tendant/simple-sso/pkg/i18n"
	"github.com/tendant/simple-sso/pkg/provider"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
	"github.com/tendant/simple-sso/pkg/validation"
)

const tracerName = "github.com/tendant/simple-sso/pkg/authflow"

// ErrInvalidPath is returned by Start for target or failure paths that are
// not local to this site.
var ErrInvalidPath = errors.New("path must be a local absolute path")

// FlowStore persists per-realm flow state in the caller's session.
type FlowStore interface {
	Start(ctx context.Context, sessionID string, r realm.Realm, targetPath, failurePath string, flowCtx map[string]string) (flowstate.FlowState, error)
	Consume(ctx context.Context, sessionID string, r realm.Realm, suppliedToken string) (flowstate.FlowState, bool, error)
	Peek(ctx context.Context, sessionID string, r realm.Realm) (flowstate.FlowState, bool, error)
}

// IdentityProvider performs the calls to the external provider.
type IdentityProvider interface {
	BuildAuthorizationURL(state, verifier string, scopes []string, extra map[string]string) (string, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, tok *oauth2.Token) (*claims.IdentityClaims, error)
}

// Validator checks identity claims against a realm policy.
type Validator interface {
	Validate(c *claims.IdentityClaims, policy realm.Policy) validation.Result
}

// AccountResolver maps identity claims to local accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, c *claims.IdentityClaims, rl realm.Realm) (*account.Account, bool, error)
	CreateIfAllowed(ctx context.Context, c *claims.IdentityClaims, rl realm.Realm, policy realm.Policy) (*account.Account, error)
	SyncAttributes(ctx context.Context, a *account.Account, c *claims.IdentityClaims, policy realm.Policy) (bool, error)
	LoginDenial(a *account.Account, policy realm.Policy, ov account.Overrides, now time.Time) reason.Reason
	FinalizeSuccessfulLogin(ctx context.Context, a *account.Account) (string, error)
}

// Deps are the collaborators of an Authenticator. Flows and Accounts are
// required, as is Provider unless Providers covers every realm in use.
type Deps struct {
	Flows    FlowStore
	Provider IdentityProvider
	// Providers overrides Provider per realm, typically because each realm
	// has its own redirect URL.
	Providers  map[realm.Realm]IdentityProvider
	Pipeline   Validator
	Accounts   AccountResolver
	Policies   realm.Policies
	Events     events.Publisher
	Translator i18n.Translator
	Logger     *slog.Logger
}

// Authenticator is the login flow orchestrator.
type Authenticator struct {
	flows      FlowStore
	provider   IdentityProvider
	providers  map[realm.Realm]IdentityProvider
	pipeline   Validator
	accounts   AccountResolver
	policies   realm.Policies
	events     events.Publisher
	translator i18n.Translator
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithClock overrides the time source used for login checks and events.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Authenticator) {
		a.tracer = tp.Tracer(tracerName)
	}
}

// New creates an Authenticator.
func New(deps Deps, opts ...Option) (*Authenticator, error) {
	if deps.Flows == nil || deps.Accounts == nil {
		return nil, fmt.Errorf("flows and accounts are required")
	}
	if deps.Provider == nil && len(deps.Providers) == 0 {
		return nil, fmt.Errorf("an identity provider is required")
	}
	a := &Authenticator{
		flows:      deps.Flows,
		provider:   deps.Provider,
		providers:  deps.Providers,
		pipeline:   deps.Pipeline,
		accounts:   deps.Accounts,
		policies:   deps.Policies,
		events:     deps.Events,
		translator: deps.Translator,
		logger:     deps.Logger,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	if a.pipeline == nil {
		a.pipeline = validation.NewPipeline()
	}
	if a.policies == nil {
		a.policies = realm.DefaultPolicies()
	}
	if a.events == nil {
		a.events = events.Discard{}
	}
	if a.translator == nil {
		a.translator = i18n.MustLoadEmbedded()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Authenticator) providerFor(r realm.Realm) (IdentityProvider, error) {
	if p, ok := a.providers[r]; ok && p != nil {
		return p, nil
	}
	if a.provider == nil {
		return nil, fmt.Errorf("no identity provider for realm %q", r)
	}
	return a.provider, nil
}

// Policy returns the policy in effect for realm r.
func (a *Authenticator) Policy(r realm.Realm) realm.Policy {
	return a.policies.For(r)
}

// StartRequest asks to begin a login in a realm.
type StartRequest struct {
	SessionID   string
	Realm       realm.Realm
	TargetPath  string
	FailurePath string
	Context     map[string]string
}

// StartResult carries the redirect to the provider.
type StartResult struct {
	RedirectURL string
	State       string
	TargetPath  string
	FailurePath string
}

// Start stores a new flow for the realm and returns the authorization URL.
// Empty paths fall back to the realm defaults.
func (a *Authenticator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := a.tracer.Start(ctx, "authflow.Start", trace.WithAttributes(
		attribute.String("sso.realm", req.Realm.String()),
	))
	defer span.End()

	if !req.Realm.Valid() {
		return nil, fmt.Errorf("unknown realm %q", req.Realm)
	}
	policy := a.policies.For(req.Realm)
	idp, err := a.providerFor(req.Realm)
	if err != nil {
		return nil, err
	}

	target := req.TargetPath
	if target == "" {
		target = policy.DefaultTargetPath
	}
	failure := req.FailurePath
	if failure == "" {
		failure = policy.DefaultFailurePath
	}
	for _, p := range []string{target, failure} {
		if !IsLocalPath(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}

	fs, err := a.flows.Start(ctx, req.SessionID, req.Realm, target, failure, req.Context)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flow state")
		return nil, fmt.Errorf("failed to start flow: %w", err)
	}

	authURL, err := idp.BuildAuthorizationURL(fs.CorrelationToken, fs.CodeVerifier, policy.Scopes, policy.AuthParams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization url")
		return nil, fmt.Errorf("failed to build authorization url: %w", err)
	}

	a.logger.InfoContext(ctx, "Login flow started", "realm", req.Realm, "target", target)
	return &StartResult{
		RedirectURL: authURL,
		State:       fs.CorrelationToken,
		TargetPath:  target,
		FailurePath: failure,
	}, nil
}

// IsLocalPath reports whether p is an absolute path on this site and not a
// scheme-relative or absolute URL.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	if strings.ContainsAny(p, "\r\n\t") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// CallbackRequest is the provider's redirect back to us.
type CallbackRequest struct {
	SessionID                string
	Realm                    realm.Realm
	State                    string
	Code                     string
	ProviderError            string
	ProviderErrorDescription string
	Language                 language.Tag
	RemoteAddr               string
}

// Outcome is the result of a callback. Exactly one of the success fields
// or Reason is meaningful, depending on Succeeded.
type Outcome struct {
	Final        State
	Trail        []State
	Succeeded    bool
	Reason       reason.Reason
	RedirectPath string
	Message      i18n.Message
	AccountID    uuid.UUID
	Identifier   string
	SubjectID    string
	Context      map[string]string
}

// attempt carries what one callback has learned so far.
type attempt struct {
	req         CallbackRequest
	policy      realm.Policy
	machine     *machine
	flow        flowstate.FlowState
	flowOK      bool
	failurePath string
	claims      *claims.IdentityClaims
	account     *account.Account
	provisioned bool
	identifier  string
}

// Callback completes a login attempt. It never returns an error: every
// failure becomes an aborted Outcome carrying one reason.
func (a *Authenticator) Callback(ctx context.Context, req CallbackRequest) *Outcome {
	ctx, span := a.tracer.Start(ctx, "authflow.Callback", trace.WithAttributes(
		attribute.String("sso.realm", req.Realm.String()),
	))
	defer span.End()

	at := &attempt{
		req:     req,
		policy:  a.policies.For(req.Realm),
		machine: newMachine(AwaitingCallback),
	}

	if err := a.safeRun(ctx, at); err != nil {
		return a.abort(ctx, span, at, err)
	}
	return a.succeed(ctx, span, at)
}

func (a *Authenticator) safeRun(ctx context.Context, at *attempt) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = reason.Newf(reason.Unexpected, "panic during callback: %v", rec)
		}
	}()
	return a.run(ctx, at)
}

func (a *Authenticator) run(ctx context.Context, at *attempt) error {
	req := at.req
	if !req.Realm.Valid() {
		return reason.Newf(reason.Unexpected, "unknown realm %q", req.Realm)
	}
	idp, err := a.providerFor(req.Realm)
	if err != nil {
		return reason.Wrap(err, reason.Unexpected, "provider lookup failed")
	}

	fs, ok, err := a.flows.Consume(ctx, req.SessionID, req.Realm, req.State)
	if err != nil {
		return reason.Wrap(err, reason.Unexpected, "flow state store failed")
	}
	if !ok {
		if stored, found, perr := a.flows.Peek(ctx, req.SessionID, req.Realm); perr == nil && found {
			at.failurePath = stored.FailurePath
		}
		if req.State == "" {
			return reason.New(reason.InvalidState, "callback without state")
		}
		return reason.New(reason.InvalidState, "state does not match a stored flow")
	}
	at.flow, at.flowOK = fs, true
	if err := at.machine.to(StateValidated); err != nil {
		return err
	}

	if req.ProviderError != "" {
		return reason.Newf(reason.IdentityProviderError, "provider returned error").
			WithDetail("error", req.ProviderError).
			WithDetail("error_description", req.ProviderErrorDescription)
	}
	if req.Code == "" {
		return reason.New(reason.MissingAuthCode, "callback without code")
	}

	tok, err := idp.ExchangeCode(ctx, req.Code, fs.CodeVerifier)
	if err != nil {
		return reason.Wrap(err, reason.IdentityProviderError, "code exchange failed")
	}
	if err := at.machine.to(TokenExchanged); err != nil {
		return err
	}

	c, err := idp.FetchIdentity(ctx, tok)
	if err != nil {
		return reason.Wrap(err, reason.IdentityProviderError, "identity fetch failed")
	}
	if c == nil {
		return reason.New(reason.IdentityProviderError, "provider returned no identity")
	}
	at.claims = c
	if err := at.machine.to(IdentityFetched); err != nil {
		return err
	}

	if res := a.pipeline.Validate(c, at.policy); !res.OK {
		return reason.Newf(res.Reason, "validation rule %s failed", res.FailedRule).
			WithDetail("rule", res.FailedRule)
	}
	if err := at.machine.to(PipelinePassed); err != nil {
		return err
	}

	acct, err := a.resolveAccount(ctx, at)
	if err != nil {
		return err
	}
	at.account = acct

	if denial := a.accounts.LoginDenial(acct, at.policy, account.OverridesFor(at.policy), a.now()); denial != "" {
		return reason.Newf(denial, "login refused for account %s", acct.ID)
	}
	if err := at.machine.to(AccountResolved); err != nil {
		return err
	}

	identifier, err := a.accounts.FinalizeSuccessfulLogin(ctx, acct)
	if err != nil {
		return reason.Wrap(err, reason.Unexpected, "finalizing login failed")
	}
	at.identifier = identifier
	return at.machine.to(Succeeded)
}

// resolveAccount finds the linked account, provisioning it when the realm
// allows, and syncs its attributes from the claims.
func (a *Authenticator) resolveAccount(ctx context.Context, at *attempt) (*account.Account, error) {
	rl, c := at.req.Realm, at.claims

	acct, found, err := a.accounts.Resolve(ctx, c, rl)
	if err != nil {
		return nil, reason.Wrap(err, reason.Unexpected, "account lookup failed")
	}
	if found {
		if _, err := a.accounts.SyncAttributes(ctx, acct, c, at.policy); err != nil {
			return nil, reason.Wrap(err, reason.Unexpected, "attribute sync failed")
		}
		return acct, nil
	}

	acct, err = a.accounts.CreateIfAllowed(ctx, c, rl, at.policy)
	switch {
	case errors.Is(err, account.ErrCreationNotAllowed):
		if realm.AutoCreateForbidden(rl) {
			return nil, reason.Wrap(err, reason.AccountCreationNotAllowed, "realm never provisions accounts")
		}
		return nil, reason.Wrap(err, reason.AccountNotFound, "no account and auto-create is off")
	case err != nil:
		return nil, reason.Wrap(err, reason.Unexpected, "account provisioning failed")
	}
	at.provisioned = true
	return acct, nil
}

func (a *Authenticator) succeed(ctx context.Context, span trace.Span, at *attempt) *Outcome {
	rl := at.req.Realm
	target := at.flow.TargetPath
	if target == "" {
		target = at.policy.DefaultTargetPath
	}

	a.logger.InfoContext(ctx, "Login succeeded",
		"realm", rl,
		"subject", at.claims.SubjectID,
		"account_id", at.account.ID,
		"identifier", at.identifier,
		"provisioned", at.provisioned,
	)
	span.SetAttributes(attribute.String("sso.outcome", string(Succeeded)))

	a.events.LoginSucceeded(ctx, events.LoginSucceeded{
		Realm:      rl,
		AccountID:  at.account.ID,
		Identifier: at.identifier,
		SubjectID:  at.claims.SubjectID,
		RemoteAddr: at.req.RemoteAddr,
		At:         a.now().UTC(),
	})

	return &Outcome{
		Final:        at.machine.current(),
		Trail:        at.machine.history(),
		Succeeded:    true,
		RedirectPath: target,
		AccountID:    at.account.ID,
		Identifier:   at.identifier,
		SubjectID:    at.claims.SubjectID,
		Context:      at.flow.Context,
	}
}

func (a *Authenticator) abort(ctx context.Context, span trace.Span, at *attempt, err error) *Outcome {
	r := reason.Of(err)
	if !r.Known() {
		r = reason.Unexpected
	}
	from := at.machine.abort()
	rl := at.req.Realm

	failure := at.failurePath
	if at.flowOK {
		failure = at.flow.FailurePath
	}
	if failure == "" {
		failure = at.policy.DefaultFailurePath
	}
	if failure == "" {
		failure = "/"
	}

	var subject, email string
	if at.claims != nil {
		subject, email = at.claims.SubjectID, at.claims.Email
	}

	attrs := []any{
		"realm", rl,
		"reason", r,
		"state", from,
		"subject", subject,
		"ip", at.req.RemoteAddr,
		"err", err,
	}
	if at.provisioned {
		attrs = append(attrs, "provisioned", true, "account_id", at.account.ID)
	}
	var rerr *reason.Error
	if errors.As(err, &rerr) && len(rerr.Details) > 0 {
		attrs = append(attrs, "details", rerr.Details)
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		attrs = append(attrs, perr.LogAttrs()...)
	}
	level := slog.LevelWarn
	if r == reason.Unexpected {
		level = slog.LevelError
	}
	a.logger.Log(ctx, level, "Login aborted", attrs...)

	span.RecordError(err)
	span.SetStatus(codes.Error, string(r))
	span.SetAttributes(
		attribute.String("sso.outcome", string(Aborted)),
		attribute.String("sso.reason", string(r)),
	)

	a.events.LoginAborted(ctx, events.LoginAborted{
		Realm:      rl,
		Reason:     r,
		SubjectID:  subject,
		Email:      email,
		RemoteAddr: at.req.RemoteAddr,
		At:         a.now().UTC(),
	})

	return &Outcome{
		Final:        at.machine.current(),
		Trail:        at.machine.history(),
		Reason:       r,
		RedirectPath: failure,
		Message:      a.translator.Translate(at.req.Language, r),
		SubjectID:    subject,
		Context:      at.flow.Context,
	}
}
