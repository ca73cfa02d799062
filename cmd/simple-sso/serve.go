package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/api"
	"github.com/tendant/simple-sso/pkg/authflow"
	"github.com/tendant/simple-sso/pkg/config"
	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/flowstate"
	"github.com/tendant/simple-sso/pkg/i18n"
	"github.com/tendant/simple-sso/pkg/metrics"
	"github.com/tendant/simple-sso/pkg/provider"
	"github.com/tendant/simple-sso/pkg/ratelimit"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/sessiontoken"
)

func newSessionStore(ctx context.Context, cfg config.Config) (flowstate.SessionStore, func(), error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("Using redis session store", "addr", opts.Addr, "prefix", cfg.Redis.Prefix)
		return flowstate.NewRedisSessionStore(client, cfg.Redis.Prefix, cfg.Session.TTL), func() { client.Close() }, nil
	default:
		slog.Info("Using in-memory session store", "ttl", cfg.Session.TTL)
		return flowstate.NewMemorySessionStore(cfg.Session.TTL), func() {}, nil
	}
}

func newAccountRepository(ctx context.Context, cfg config.Config) (account.Repository, func(), error) {
	switch cfg.Accounts.Store {
	case config.StorePostgres:
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		repo := account.NewPostgresRepository(pool)
		if cfg.Accounts.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to migrate accounts: %w", err)
			}
		}
		slog.Info("Using postgres account store", "host", cfg.Database.Host, "database", cfg.Database.Database)
		return repo, pool.Close, nil
	case config.StoreFile:
		repo, err := account.NewFileRepository(cfg.Accounts.DataDir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using file account store", "dir", cfg.Accounts.DataDir)
		return repo, func() {}, nil
	default:
		slog.Warn("Using in-memory account store, accounts are lost on restart")
		return account.NewInMemoryRepository(), func() {}, nil
	}
}

func newProviders(cfg config.Config, observer provider.Observer) (map[realm.Realm]authflow.IdentityProvider, error) {
	hc := &http.Client{Timeout: cfg.Provider.Timeout}
	providers := make(map[realm.Realm]authflow.IdentityProvider, len(realm.All()))
	for _, r := range realm.All() {
		client, err := provider.NewClient(cfg.ProviderFor(r),
			provider.WithHTTPClient(hc),
			provider.WithObserver(observer),
		)
		if err != nil {
			return nil, fmt.Errorf("realm %s: %w", r, err)
		}
		providers[r] = client
	}
	return providers, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	policies, err := cfg.Policies()
	if err != nil {
		return fmt.Errorf("invalid realm policy: %w", err)
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()
	flowOpts := []flowstate.Option{flowstate.WithMaxAge(cfg.Session.FlowMaxAge)}
	if !cfg.Provider.UsePKCE {
		flowOpts = append(flowOpts, flowstate.WithoutPKCE())
	}
	flows := flowstate.NewStore(sessions, flowOpts...)

	repo, closeRepo, err := newAccountRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	bus := events.NewBus()
	if err := bus.Subscribe("metrics", recorder); err != nil {
		return err
	}

	var throttle *ratelimit.AbortThrottle
	if cfg.Throttle.Enabled {
		throttle = ratelimit.NewAbortThrottle(cfg.RateLimit(), nil)
		defer throttle.Close()
		if err := bus.Subscribe("throttle", throttle); err != nil {
			return err
		}
	}

	if kc, enabled := cfg.EventStream(); enabled {
		publisher, err := events.NewKafkaPublisher(kc)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Flush(flushCtx); err != nil {
				slog.Warn("Failed to flush login events", "err", err)
			}
			publisher.Close()
		}()
		if cfg.Kafka.EnsureTopics {
			if err := publisher.EnsureTopics(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				return err
			}
		}
		if err := bus.Subscribe("kafka", publisher); err != nil {
			return err
		}
		slog.Info("Publishing login events", "brokers", kc.Brokers, "aborted_topic", kc.AbortedTopic, "succeeded_topic", kc.SucceededTopic)
	}

	catalog, err := i18n.LoadEmbedded()
	if err != nil {
		return err
	}

	providers, err := newProviders(cfg, recorder)
	if err != nil {
		return err
	}

	authenticator, err := authflow.New(authflow.Deps{
		Flows:      flows,
		Providers:  providers,
		Accounts:   account.NewResolver(repo),
		Policies:   policies,
		Events:     bus,
		Translator: catalog,
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}

	key, err := sessiontoken.DeriveKey([]byte(cfg.Secret), "login-token")
	if err != nil {
		return err
	}
	issuer := sessiontoken.NewIssuer(key,
		sessiontoken.WithIssuerName(cfg.Token.Issuer),
		sessiontoken.WithTTL(cfg.Token.TTL),
		sessiontoken.WithCookie(cfg.Token.CookieName, cfg.Token.CookieSecure),
	)

	handleOpts := []api.Option{
		api.WithIssuer(issuer),
		api.WithSessionCookie(cfg.Session.CookieName, cfg.Session.CookieSecure),
	}
	if throttle != nil {
		handleOpts = append(handleOpts, api.WithThrottle(throttle))
	}
	handle := api.NewHandle(authenticator, flows, catalog, handleOpts...)

	server := app.NewApp(
		app.WithAppConfig(cfg.AppConfig),
		app.WithCors(app.DefaultCorsOptions()),
		app.WithReqLogger(app.DefaultHttpLogger()),
	)
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	if cfg.AppConfig.Metrics.Enabled {
		server.R.Handle("/metrics", recorder.Handler())
	}
	server.R.Mount(cfg.APIPrefix, api.Routes(handle))

	slog.Info("SSO endpoints configured", "prefix", cfg.APIPrefix,
		"frontend_callback", cfg.CallbackURL(realm.Frontend),
		"backend_callback", cfg.CallbackURL(realm.Backend),
		"session_store", cfg.Session.Store, "account_store", cfg.Accounts.Store,
		"host", cfg.AppConfig.Host, "port", cfg.AppConfig.Port, "env", cfg.AppConfig.AppEnv)

	server.Run()
	return nil
}

type policyView struct {
	Realm                       string            `yaml:"realm"`
	AutoCreate                  bool              `yaml:"auto_create"`
	RequireGroupMembership      bool              `yaml:"require_group_membership"`
	GroupPrefix                 string            `yaml:"group_prefix,omitempty"`
	GroupAllowList              []string          `yaml:"group_allow_list,omitempty"`
	RequireSubsectionMembership bool              `yaml:"require_subsection_membership"`
	SubsectionPrefix            string            `yaml:"subsection_prefix,omitempty"`
	SubsectionAllowList         []string          `yaml:"subsection_allow_list,omitempty"`
	RequireLoginFlag            bool              `yaml:"require_login_flag"`
	AllowLoginIfDisabled        bool              `yaml:"allow_login_if_disabled"`
	DefaultTargetPath           string            `yaml:"default_target_path"`
	DefaultFailurePath          string            `yaml:"default_failure_path"`
	Scopes                      []string          `yaml:"scopes"`
	AuthParams                  map[string]string `yaml:"auth_params,omitempty"`
	SyncClaims                  []string          `yaml:"sync_claims,omitempty"`
	CallbackURL                 string            `yaml:"callback_url"`
}

func printPolicies(w io.Writer, cfg config.Config) error {
	policies, err := cfg.Policies()
	if err != nil {
		return err
	}
	views := make([]policyView, 0, len(realm.All()))
	for _, r := range realm.All() {
		p := policies.For(r)
		views = append(views, policyView{
			Realm:                       r.String(),
			AutoCreate:                  p.CanAutoCreate(),
			RequireGroupMembership:      p.RequireGroupMembership,
			GroupPrefix:                 p.GroupPrefix,
			GroupAllowList:              p.GroupAllowList,
			RequireSubsectionMembership: p.RequireSubsectionMembership,
			SubsectionPrefix:            p.SubsectionPrefix,
			SubsectionAllowList:         p.SubsectionAllowList,
			RequireLoginFlag:            p.RequireLoginFlag,
			AllowLoginIfDisabled:        p.AllowLoginIfDisabled,
			DefaultTargetPath:           p.DefaultTargetPath,
			DefaultFailurePath:          p.DefaultFailurePath,
			Scopes:                      p.Scopes,
			AuthParams:                  p.AuthParams,
			SyncClaims:                  p.SyncClaims,
			CallbackURL:                 cfg.CallbackURL(r),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(views)
}
