package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-console/internal/rbac"
)

// Token storage backends.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// Config holds runtime configuration for the console and erpctl.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	ConsoleAddr       string        `envconfig:"CONSOLE_ADDR" default:"127.0.0.1:8090"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	Language  string `envconfig:"CONSOLE_LANGUAGE" default:"en-US"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`

	PaymentPublishableKey string `envconfig:"PAYMENT_PUBLISHABLE_KEY"`

	TokenStore    string        `envconfig:"TOKEN_STORE" default:"file"`
	TokenFile     string        `envconfig:"TOKEN_FILE"`
	TokenSealKey  string        `envconfig:"TOKEN_SEAL_KEY"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisTokenTTL time.Duration `envconfig:"REDIS_TOKEN_TTL" default:"720h"`

	PermissionsUnwired string        `envconfig:"PERMISSIONS_UNWIRED" default:"open"`
	CacheKeepUnused    time.Duration `envconfig:"CACHE_KEEP_UNUSED" default:"60s"`
	LoginRateLimit     int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	CSRFSecret string `envconfig:"CSRF_SECRET"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the console cannot run with.
func (c *Config) Validate() error {
	base, err := url.Parse(c.APIBaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("API_BASE_URL %q must be an absolute http(s) url", c.APIBaseURL)
	}
	c.TokenStore = strings.ToLower(strings.TrimSpace(c.TokenStore))
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreRedis, TokenStoreMemory:
	default:
		return fmt.Errorf("TOKEN_STORE %q must be one of file, redis, memory", c.TokenStore)
	}
	if _, err := c.UnwiredPolicy(); err != nil {
		return fmt.Errorf("PERMISSIONS_UNWIRED: %w", err)
	}
	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT %q must be pretty or json", c.LogFormat)
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}
	if c.CacheKeepUnused < 0 {
		return fmt.Errorf("CACHE_KEEP_UNUSED must not be negative")
	}
	return nil
}

// UnwiredPolicy is the permission answer when no resolver is mounted.
func (c *Config) UnwiredPolicy() (rbac.Policy, error) {
	return rbac.ParsePolicy(c.PermissionsUnwired)
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
