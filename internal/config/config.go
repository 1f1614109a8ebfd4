// Package config loads skuforge configuration from the environment.
//
// Values come from process environment variables, optionally overlaid by a
// .env file. Nested keys map to upper-case variables joined by underscores:
// server.port is SERVER_PORT, sequence.key_prefix is SEQUENCE_KEY_PREFIX.
// Defaults are declared with `default` struct tags.
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"skuforge/internal/core/sku"
)

// Backend names accepted by sequence.backend and catalog.backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendShopify  = "shopify"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Shopify     ShopifyConfig     `mapstructure:"shopify"`
	Sequence    SequenceConfig    `mapstructure:"sequence"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Assign      AssignConfig      `mapstructure:"assign"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Journal     JournalConfig     `mapstructure:"journal"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port" default:"8080"`
	Mode            string        `mapstructure:"mode" default:"release"` // gin mode
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"30s"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" default:"info"`
	Development bool   `mapstructure:"development" default:"false"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" default:""`
	MaxConns        int32         `mapstructure:"max_conns" default:"10"`
	MinConns        int32         `mapstructure:"min_conns" default:"1"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time" default:"30m"`
	EnsureSchema    bool          `mapstructure:"ensure_schema" default:"true"`
}

// ShopifyConfig holds Admin API credentials.
type ShopifyConfig struct {
	ShopDomain  string        `mapstructure:"shop_domain" default:""`
	AccessToken string        `mapstructure:"access_token" default:""`
	APIVersion  string        `mapstructure:"api_version" default:"2025-07"`
	Endpoint    string        `mapstructure:"endpoint" default:""`
	Timeout     time.Duration `mapstructure:"timeout" default:"30s"`
	MaxRetries  uint64        `mapstructure:"max_retries" default:"5"`
}

// SequenceConfig selects and tunes the counter store.
type SequenceConfig struct {
	Backend   string `mapstructure:"backend" default:"memory"`
	Namespace string `mapstructure:"namespace" default:"skus"`
	KeyPrefix string `mapstructure:"key_prefix" default:"seq_"`
	Initial   int64  `mapstructure:"initial" default:"0"`
	// Atomic uses the store's increment primitive when it has one.
	Atomic bool   `mapstructure:"atomic" default:"true"`
	Format string `mapstructure:"format" default:"hex"`
}

// CatalogConfig selects the catalog backend.
type CatalogConfig struct {
	Backend string `mapstructure:"backend" default:"memory"`
}

// AssignConfig tunes the assignment service.
type AssignConfig struct {
	Concurrency int `mapstructure:"concurrency" default:"4"`
}

// WorkerConfig configures the backfill worker.
type WorkerConfig struct {
	Interval  time.Duration `mapstructure:"interval" default:"1m"`
	BatchSize int           `mapstructure:"batch_size" default:"50"`
	// Filter is a CEL expression over id, title, vendor, product_type,
	// group, targets and missing.
	Filter    string `mapstructure:"filter" default:""`
	Overwrite bool   `mapstructure:"overwrite" default:"false"`
}

// IdempotencyConfig configures replay of assign requests.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled" default:"true"`
	TTL     time.Duration `mapstructure:"ttl" default:"24h"`
}

// AuthConfig configures embedded-app session token validation.
type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled" default:"false"`
	APIKey    string        `mapstructure:"api_key" default:""`
	APISecret string        `mapstructure:"api_secret" default:""`
	Leeway    time.Duration `mapstructure:"leeway" default:"5s"`
}

// JournalConfig tunes the assignment journal.
type JournalConfig struct {
	CompressThreshold int `mapstructure:"compress_threshold" default:"4096"`
}

// Load reads configuration from the environment and dir/.env.
func Load(dir string) (*Config, error) {
	envPath := ".env"
	if dir != "" && dir != "." {
		envPath = dir + "/.env"
	}
	// Missing .env is normal outside development.
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindValues registers every mapstructure key with its default so that
// AutomaticEnv can see it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var result *multierror.Error

	for name, backend := range map[string]string{
		"sequence.backend": c.Sequence.Backend,
		"catalog.backend":  c.Catalog.Backend,
	} {
		switch backend {
		case BackendMemory, BackendPostgres, BackendShopify:
		default:
			result = multierror.Append(result, fmt.Errorf("%s: unknown backend %q", name, backend))
		}
	}

	if c.UsesPostgres() && c.Database.URL == "" {
		result = multierror.Append(result, errors.New("database.url is required for the postgres backend"))
	}
	if c.UsesShopify() && (c.Shopify.ShopDomain == "" && c.Shopify.Endpoint == "" || c.Shopify.AccessToken == "") {
		result = multierror.Append(result, errors.New("shopify.shop_domain and shopify.access_token are required for the shopify backend"))
	}
	if _, err := sku.ParseVersion(c.Sequence.Format); err != nil {
		result = multierror.Append(result, fmt.Errorf("sequence.format: %w", err))
	}
	if c.Sequence.Initial < 0 {
		result = multierror.Append(result, errors.New("sequence.initial must not be negative"))
	}
	if c.Assign.Concurrency < 1 {
		result = multierror.Append(result, errors.New("assign.concurrency must be at least 1"))
	}
	if c.Auth.Enabled && (c.Auth.APIKey == "" || c.Auth.APISecret == "") {
		result = multierror.Append(result, errors.New("auth.api_key and auth.api_secret are required when auth is enabled"))
	}

	return result.ErrorOrNil()
}

// UsesPostgres reports whether any backend needs a database pool.
func (c *Config) UsesPostgres() bool {
	return c.Sequence.Backend == BackendPostgres || c.Catalog.Backend == BackendPostgres
}

// UsesShopify reports whether any backend needs the Admin API client.
func (c *Config) UsesShopify() bool {
	return c.Sequence.Backend == BackendShopify || c.Catalog.Backend == BackendShopify
}

// FormatVersion returns the configured identifier format.
func (c *Config) FormatVersion() sku.Version {
	v, _ := sku.ParseVersion(c.Sequence.Format)
	return v
}
