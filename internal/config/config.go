package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	App         AppConfig
	Store       StoreConfig
	Redis       RedisConfig
	Marketplace MarketplaceConfig
	Catalog     CatalogConfig
	Vault       VaultConfig
	Scheduler   SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"repricer-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     string `envconfig:"API_KEYS" default:""` // comma-separated
}

// StoreConfig holds relational store settings. The listing store backend is
// selectable; the auxiliary tables (strategies, credentials, events,
// settings) always live in the SQLite file at Path.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"STORE_PATH" default:"./data/repricer.db"`
	// PostgreSQL settings
	PGHost     string `envconfig:"STORE_PG_HOST" default:"localhost"`
	PGPort     int    `envconfig:"STORE_PG_PORT" default:"5432"`
	PGName     string `envconfig:"STORE_PG_NAME" default:"repricer"`
	PGUser     string `envconfig:"STORE_PG_USER" default:"postgres"`
	PGPassword string `envconfig:"STORE_PG_PASS" default:""`
	PGSSLMode  string `envconfig:"STORE_PG_SSLMODE" default:"disable"`
	// MySQL settings
	MyHost     string `envconfig:"STORE_MYSQL_HOST" default:"localhost"`
	MyPort     int    `envconfig:"STORE_MYSQL_PORT" default:"3306"`
	MyName     string `envconfig:"STORE_MYSQL_NAME" default:"repricer"`
	MyUser     string `envconfig:"STORE_MYSQL_USER" default:"root"`
	MyPassword string `envconfig:"STORE_MYSQL_PASS" default:""`
}

// RedisConfig holds Redis settings for the OAuth state store. Optional; a
// memory store is used when Redis is unreachable.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// MarketplaceConfig holds marketplace API and OAuth endpoint settings.
type MarketplaceConfig struct {
	BaseURL      string        `envconfig:"MARKETPLACE_BASE_URL" default:"https://api.marketplace.example"`
	AuthURL      string        `envconfig:"MARKETPLACE_AUTH_URL" default:"https://auth.marketplace.example/oauth2/authorize"`
	TokenURL     string        `envconfig:"MARKETPLACE_TOKEN_URL" default:"https://auth.marketplace.example/oauth2/token"`
	RevokeURL    string        `envconfig:"MARKETPLACE_REVOKE_URL" default:""`
	RedirectURL  string        `envconfig:"MARKETPLACE_REDIRECT_URL" default:"http://localhost:8080/api/v1/marketplace/callback"`
	Scopes       string        `envconfig:"MARKETPLACE_SCOPES" default:"sell.inventory sell.account"`
	Timeout      time.Duration `envconfig:"MARKETPLACE_TIMEOUT" default:"30s"`
	MaxRetries   int           `envconfig:"MARKETPLACE_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"MARKETPLACE_RETRY_BACKOFF" default:"1s"`
	// Minimum spacing between requests, derived from the per-minute budget.
	RequestsPerMinute int `envconfig:"MARKETPLACE_REQUESTS_PER_MINUTE" default:"120"`
}

// CatalogConfig holds catalog provider settings.
type CatalogConfig struct {
	BaseURL string        `envconfig:"CATALOG_BASE_URL" default:"https://catalog.example/v1"`
	APIKey  string        `envconfig:"CATALOG_API_KEY" default:""`
	Timeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"15s"`
}

// VaultConfig holds the credential vault's encryption settings. MasterKey is
// process-wide configuration, never derived from user input.
type VaultConfig struct {
	MasterKey string `envconfig:"VAULT_MASTER_KEY" required:"true"`
}

// SchedulerConfig holds reduction-cycle settings.
type SchedulerConfig struct {
	Workers       int           `envconfig:"SCHEDULER_WORKERS" default:"4"`
	Cron          string        `envconfig:"SCHEDULER_CRON" default:""` // empty disables the in-process trigger
	SyncFreshness time.Duration `envconfig:"SYNC_FRESHNESS_WINDOW" default:"4h"`
	RefreshMargin time.Duration `envconfig:"TOKEN_REFRESH_MARGIN" default:"5m"`
	StateTTL      time.Duration `envconfig:"OAUTH_STATE_TTL" default:"10m"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.PGUser, s.PGPassword, s.PGHost, s.PGPort, s.PGName, s.PGSSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.MyUser, s.MyPassword, s.MyHost, s.MyPort, s.MyName)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinRequestInterval converts the per-minute budget into request spacing.
func (m *MarketplaceConfig) MinRequestInterval() time.Duration {
	if m.RequestsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(m.RequestsPerMinute)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
