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
	Server     ServerConfig
	App        AppConfig
	Amazon     AmazonConfig
	Sync       SyncConfig
	RateLimit  RateLimitConfig
	Retry      RetryConfig
	TrackingDB TrackingDBConfig
	CatalogDB  CatalogDBConfig
	Cache      CacheConfig
	Retention  RetentionConfig
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
	Name        string `envconfig:"APP_NAME" default:"buybox-sync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKey    string `envconfig:"ADMIN_KEY" default:""` // Guards the manual sync trigger
}

// AmazonConfig holds SP-API endpoints and seller identity.
type AmazonConfig struct {
	TokenEndpoint    string        `envconfig:"AMAZON_TOKEN_ENDPOINT" default:"https://api.amazon.com/auth/o2/token"`
	APIEndpoint      string        `envconfig:"AMAZON_API_ENDPOINT" default:"https://sellingpartnerapi-na.amazon.com"`
	ClientID         string        `envconfig:"AMAZON_CLIENT_ID" default:""`
	ClientSecret     string        `envconfig:"AMAZON_CLIENT_SECRET" default:""`
	SellerID         string        `envconfig:"AMAZON_SELLER_ID" default:""`
	SellerName       string        `envconfig:"AMAZON_SELLER_NAME" default:""`
	MarketplaceID    string        `envconfig:"AMAZON_MARKETPLACE_ID" default:"ATVPDKIKX0DER"`
	TokenMargin      time.Duration `envconfig:"AMAZON_TOKEN_MARGIN" default:"60s"`
	CredentialSecret string        `envconfig:"CREDENTIAL_SECRET" default:""` // AES key for refresh tokens at rest
}

// SyncConfig holds orchestrator scheduling settings.
type SyncConfig struct {
	PollInterval time.Duration `envconfig:"SYNC_POLL_INTERVAL" default:"15m"`
	BatchSize    int           `envconfig:"SYNC_BATCH_SIZE" default:"10"`
	BatchPause   time.Duration `envconfig:"SYNC_BATCH_PAUSE" default:"2s"`
	Concurrency  int           `envconfig:"SYNC_CONCURRENCY" default:"5"`
	RunTimeout   time.Duration `envconfig:"SYNC_RUN_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds the offers endpoint throughput ceiling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// RetryConfig holds the per-request retry budget.
type RetryConfig struct {
	MaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4"`
	InitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms"`
	MaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"10s"`
}

// TrackingDBConfig holds tracking database settings (statuses, history,
// competitor offers, alerts, sync runs).
type TrackingDBConfig struct {
	Type string `envconfig:"TRACKING_DB_TYPE" default:"sqlite"` // sqlite or postgres
	Path string `envconfig:"TRACKING_DB_PATH" default:"./data/buybox.db"`
	// PostgreSQL settings
	Host     string `envconfig:"TRACKING_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"TRACKING_DB_PORT" default:"5432"`
	Name     string `envconfig:"TRACKING_DB_NAME" default:"appproft"`
	User     string `envconfig:"TRACKING_DB_USER" default:"postgres"`
	Password string `envconfig:"TRACKING_DB_PASS" default:""`
	SSLMode  string `envconfig:"TRACKING_DB_SSLMODE" default:"disable"`
}

// CatalogDBConfig holds MySQL connection settings for the product catalog
// (read-only; the catalog is owned by the ingestion pipeline).
type CatalogDBConfig struct {
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"3306"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"appproft"`
	User     string `envconfig:"CATALOG_DB_USER" default:"root"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
}

// CacheConfig holds seller-name cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"168h"`    // seller names go stale after 7 days

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RetentionConfig bounds competitor-offer snapshot growth.
type RetentionConfig struct {
	OfferMaxAge   time.Duration `envconfig:"RETENTION_OFFER_MAX_AGE" default:"2160h"` // 90 days
	SweepInterval time.Duration `envconfig:"RETENTION_SWEEP_INTERVAL" default:"24h"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (t *TrackingDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		t.User, t.Password, t.Host, t.Port, t.Name, t.SSLMode)
}

// DSN returns the MySQL data source name for the catalog database.
func (c *CatalogDBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
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
