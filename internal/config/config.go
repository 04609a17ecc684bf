// Package config loads server configuration from an optional config.toml
// and AJO_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Engine   EngineConfig
	Auth     AuthConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Env          string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodySize caps webhook and RPC bodies, in bytes.
	MaxBodySize int64
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig enables the shared charge locker when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GatewayConfig struct {
	BaseURL   string
	SecretKey string
	// WebhookSecret signs webhook bodies; Paystack uses the secret key.
	WebhookSecret string
}

type EngineConfig struct {
	GatewayTimeout time.Duration
	ChargeLockTTL  time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	TokenDuration time.Duration
	// APIKeyHash is the bcrypt hash of the scheduler's API key.
	APIKeyHash string
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Load reads configuration from config.toml (if present) and environment
// variables. Environment variables use the AJO_ prefix with dots replaced by
// underscores, e.g. AJO_GATEWAY_SECRET_KEY.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ajo")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("AJO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("metrics.enabled", true)

	cfg := &Config{
		Server: ServerConfig{
			Env:          v.GetString("server.env"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			MaxBodySize:  v.GetInt64("server.max_body_size"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Gateway: GatewayConfig{
			BaseURL:       v.GetString("gateway.base_url"),
			SecretKey:     v.GetString("gateway.secret_key"),
			WebhookSecret: v.GetString("gateway.webhook_secret"),
		},
		Engine: EngineConfig{
			GatewayTimeout: v.GetDuration("engine.gateway_timeout"),
			ChargeLockTTL:  v.GetDuration("engine.charge_lock_ttl"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("auth.jwt_secret"),
			TokenDuration: v.GetDuration("auth.token_duration"),
			APIKeyHash:    v.GetString("auth.api_key_hash"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Runs are synchronous; allow several slow gateway calls.
		cfg.Server.WriteTimeout = 10 * time.Minute
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/ajo.db"
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.paystack.co"
	}
	if cfg.Gateway.WebhookSecret == "" {
		cfg.Gateway.WebhookSecret = cfg.Gateway.SecretKey
	}
	if cfg.Engine.GatewayTimeout == 0 {
		cfg.Engine.GatewayTimeout = 30 * time.Second
	}
	if cfg.Engine.ChargeLockTTL == 0 {
		cfg.Engine.ChargeLockTTL = 15 * time.Minute
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Engine.GatewayTimeout < 0 || c.Engine.ChargeLockTTL < 0 {
		return fmt.Errorf("engine timeouts cannot be negative")
	}
	if c.Engine.ChargeLockTTL <= c.Engine.GatewayTimeout {
		return fmt.Errorf("engine.charge_lock_ttl (%s) must exceed engine.gateway_timeout (%s)",
			c.Engine.ChargeLockTTL, c.Engine.GatewayTimeout)
	}
	if c.Auth.JWTSecret == "" && c.Auth.APIKeyHash == "" {
		return fmt.Errorf("auth.jwt_secret or auth.api_key_hash is required")
	}

	// Production-specific validations
	if c.IsProduction() {
		if c.Gateway.SecretKey == "" {
			return fmt.Errorf("gateway.secret_key is required in production")
		}
		if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters in production")
		}
		if strings.HasPrefix(c.Gateway.SecretKey, "sk_test_") {
			return fmt.Errorf("gateway.secret_key is a test key in production")
		}
	}

	return nil
}
