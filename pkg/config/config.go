// Package config loads the service configuration from the environment.
//
// Values come from environment variables, optionally seeded from a .env
// file. Every field has a default except the provider credentials and the
// signing secret, which Validate insists on.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-sso/pkg/claims"
	"github.com/tendant/simple-sso/pkg/events"
	"github.com/tendant/simple-sso/pkg/provider"
	"github.com/tendant/simple-sso/pkg/ratelimit"
	"github.com/tendant/simple-sso/pkg/realm"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// ProviderConfig describes the external identity provider.
type ProviderConfig struct {
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	AuthURL      string        `env:"AUTH_URL"`
	TokenURL     string        `env:"TOKEN_URL"`
	UserInfoURL  string        `env:"USERINFO_URL"`
	AuthStyle    string        `env:"AUTH_STYLE" env-default:"params"`
	UsePKCE      bool          `env:"USE_PKCE" env-default:"true"`
	Timeout      time.Duration `env:"TIMEOUT" env-default:"10s"`

	SubjectClaim   string `env:"CLAIM_SUBJECT" env-default:"sub"`
	EmailClaim     string `env:"CLAIM_EMAIL" env-default:"email"`
	FullNameClaim  string `env:"CLAIM_NAME" env-default:"name"`
	FirstNameClaim string `env:"CLAIM_GIVEN_NAME" env-default:"given_name"`
	LastNameClaim  string `env:"CLAIM_FAMILY_NAME" env-default:"family_name"`
	RolesClaim     string `env:"CLAIM_ROLES" env-default:"roles"`
	RolesDelimiter string `env:"CLAIM_ROLES_DELIMITER" env-default:","`
}

// SessionConfig controls the session store holding flow state.
type SessionConfig struct {
	Store        string        `env:"STORE" env-default:"memory"`
	TTL          time.Duration `env:"TTL" env-default:"30m"`
	FlowMaxAge   time.Duration `env:"FLOW_MAX_AGE" env-default:"10m"`
	CookieName   string        `env:"COOKIE_NAME" env-default:"sso_session"`
	CookieSecure bool          `env:"COOKIE_SECURE" env-default:"false"`
}

// RedisConfig is used when the session store is redis.
type RedisConfig struct {
	URL    string `env:"SSO_REDIS_URL" env-default:"redis://localhost:6379/0"`
	Prefix string `env:"SSO_REDIS_PREFIX" env-default:"sso:session:"`
}

// AccountStoreConfig selects where local accounts live.
type AccountStoreConfig struct {
	Store   string `env:"SSO_ACCOUNT_STORE" env-default:"memory"`
	DataDir string `env:"SSO_ACCOUNT_DATA_DIR" env-default:"./data"`
	Migrate bool   `env:"SSO_ACCOUNT_MIGRATE" env-default:"true"`
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `env:"SSO_KAFKA_BROKERS" env-separator:","`
	AbortedTopic      string   `env:"SSO_KAFKA_ABORTED_TOPIC" env-default:"sso.login.aborted"`
	SucceededTopic    string   `env:"SSO_KAFKA_SUCCEEDED_TOPIC" env-default:"sso.login.succeeded"`
	ClientID          string   `env:"SSO_KAFKA_CLIENT_ID" env-default:"simple-sso"`
	EnsureTopics      bool     `env:"SSO_KAFKA_ENSURE_TOPICS" env-default:"false"`
	Partitions        int32    `env:"SSO_KAFKA_PARTITIONS" env-default:"3"`
	ReplicationFactor int16    `env:"SSO_KAFKA_REPLICATION_FACTOR" env-default:"1"`
}

// ThrottleConfig limits login starts for clients producing aborted logins.
type ThrottleConfig struct {
	Enabled         bool          `env:"SSO_THROTTLE_ENABLED" env-default:"true"`
	Capacity        int           `env:"SSO_THROTTLE_CAPACITY" env-default:"10"`
	RefillPerMinute float64       `env:"SSO_THROTTLE_REFILL_PER_MINUTE" env-default:"2"`
	BucketTTL       time.Duration `env:"SSO_THROTTLE_BUCKET_TTL" env-default:"1h"`
}

// TokenConfig controls the login token set after a successful login.
type TokenConfig struct {
	Issuer       string        `env:"SSO_TOKEN_ISSUER" env-default:"simple-sso"`
	TTL          time.Duration `env:"SSO_TOKEN_TTL" env-default:"8h"`
	CookieName   string        `env:"SSO_TOKEN_COOKIE_NAME" env-default:"sso_login"`
	CookieSecure bool          `env:"SSO_TOKEN_COOKIE_SECURE" env-default:"false"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"SSO_LOG_LEVEL" env-default:"info"`
	Format string `env:"SSO_LOG_FORMAT" env-default:"text"`
}

type Config struct {
	BaseURL   string `env:"SSO_BASE_URL" env-default:"http://localhost:4000"`
	APIPrefix string `env:"SSO_API_PREFIX" env-default:"/sso"`
	Secret    string `env:"SSO_SECRET"`

	Provider ProviderConfig `env-prefix:"SSO_PROVIDER_"`
	Session  SessionConfig  `env-prefix:"SSO_SESSION_"`
	Frontend RealmConfig    `env-prefix:"SSO_FRONTEND_"`
	Backend  RealmConfig    `env-prefix:"SSO_BACKEND_"`

	Database DatabaseConfig
	Redis    RedisConfig
	Accounts AccountStoreConfig
	Kafka    KafkaConfig
	Throttle ThrottleConfig
	Token    TokenConfig
	Log      LogConfig

	// Server
	AppConfig app.AppConfig
}

// Load reads an optional .env file and then the environment. An empty
// envFile looks for .env next to the executable and in the working
// directory.
func Load(envFile string) (Config, error) {
	loadEnvFile(envFile)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(envFile string) {
	if envFile == "" {
		if execPath, err := os.Executable(); err == nil {
			envFile = filepath.Join(filepath.Dir(execPath), ".env")
		}
		if _, err := os.Stat(envFile); envFile == "" || os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			envFile = filepath.Join(cwd, ".env")
		}
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

// Usage describes every environment variable, for the CLI help.
func Usage() (string, error) {
	var cfg Config
	var b strings.Builder
	b.WriteString("Environment variables:\n")
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return "", err
	}
	b.WriteString(desc)
	return b.String(), nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	var errs []error
	if len(c.Secret) < 32 {
		errs = append(errs, errors.New("SSO_SECRET must be at least 32 characters"))
	}
	for _, r := range realm.All() {
		if err := c.ProviderFor(r).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("provider: %w", err))
			break
		}
	}
	switch c.Session.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}
	switch c.Accounts.Store {
	case StoreMemory, StoreFile, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown account store %q", c.Accounts.Store))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API prefix must start with /: %q", c.APIPrefix))
	}
	if _, err := c.Policies(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CallbackURL is the provider redirect target for realm r.
func (c Config) CallbackURL(r realm.Realm) string {
	return strings.TrimRight(c.BaseURL, "/") + strings.TrimRight(c.APIPrefix, "/") + "/" + r.String() + "/callback"
}

// ProviderFor returns the provider configuration for realm r. Realms differ
// only in their redirect URL.
func (c Config) ProviderFor(r realm.Realm) provider.Config {
	p := c.Provider
	return provider.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		UserInfoURL:  p.UserInfoURL,
		RedirectURL:  c.CallbackURL(r),
		AuthStyle:    p.AuthStyle,
		UsePKCE:      p.UsePKCE,
		Claims: claims.Mapping{
			Subject:    p.SubjectClaim,
			Email:      p.EmailClaim,
			FullName:   p.FullNameClaim,
			FirstName:  p.FirstNameClaim,
			LastName:   p.LastNameClaim,
			Roles:      p.RolesClaim,
			RolesDelim: p.RolesDelimiter,
		},
	}
}

// RateLimit converts the throttle settings.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Capacity:   c.Throttle.Capacity,
		RefillRate: c.Throttle.RefillPerMinute / 60.0,
		BucketTTL:  c.Throttle.BucketTTL,
	}
}

// EventStream converts the Kafka settings. ok is false when no brokers are
// configured.
func (c Config) EventStream() (events.KafkaConfig, bool) {
	if len(c.Kafka.Brokers) == 0 {
		return events.KafkaConfig{}, false
	}
	return events.KafkaConfig{
		Brokers:        c.Kafka.Brokers,
		AbortedTopic:   c.Kafka.AbortedTopic,
		SucceededTopic: c.Kafka.SucceededTopic,
		ClientID:       c.Kafka.ClientID,
	}, true
}

// LogLevel parses Log.Level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
