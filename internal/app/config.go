package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Cache       CacheConfig
	Upload      UploadConfig
	Events      EventsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls bearer token issuing.
type AuthConfig struct {
	JWTSecret string        `usage:"HMAC secret for signing access tokens" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"24h" usage:"Access token lifetime" flag:"token-ttl"`
	Issuer    string        `default:"storefront" usage:"Token issuer claim"`
}

// CacheConfig selects the catalog cache backend.
type CacheConfig struct {
	Driver         string        `default:"memory" usage:"Cache driver: none, memory or redis"`
	RedisURL       string        `usage:"Redis URL (SHOP_CACHE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	KeyPrefix      string        `default:"storefront:" usage:"Prefix for every cache key"`
	Capacity       int           `default:"10000" usage:"Maximum entries held by the memory cache"`
	ProductTTL     time.Duration `default:"600s" usage:"Lifetime of a cached product"`
	ProductListTTL time.Duration `default:"300s" usage:"Lifetime of a cached product listing"`
}

// UploadConfig controls image storage.
type UploadConfig struct {
	Root         string `default:"uploads" usage:"Directory uploaded files are stored in"`
	MaxSize      int64  `default:"2097152" usage:"Maximum size of one uploaded file in bytes"`
	MaxDimension int    `default:"1200" usage:"Longest edge of a stored image"`
	MaxPixels    int    `default:"25000000" usage:"Largest width times height accepted for decoding"`
	Quality      int    `default:"85" usage:"JPEG quality of stored images"`
	PublicPrefix string `default:"/uploads" usage:"URL prefix uploaded files are served under"`
}

// EventsConfig controls order event publishing. No brokers disables it.
type EventsConfig struct {
	Brokers []string `usage:"Kafka broker addresses"`
	Topic   string   `default:"storefront.orders" usage:"Kafka topic for order events"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"100" usage:"Max requests per window"`
	Window  time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Backend string        `default:"memory" usage:"Rate limit counter store: memory or redis"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("token secret is required: set SHOP_AUTH_JWT_SECRET or JWT_SECRET")
	}
	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("redis cache requires SHOP_CACHE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("redis rate limiting requires SHOP_CACHE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := []struct {
		dst *string
		env string
	}{
		{&c.DatabaseURL, "DATABASE_URL"},
		{&c.Cache.RedisURL, "REDIS_URL"},
		{&c.Auth.JWTSecret, "JWT_SECRET"},
	}
	for _, f := range fallback {
		if *f.dst != "" {
			continue
		}
		if v := os.Getenv(f.env); v != "" {
			*f.dst = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
