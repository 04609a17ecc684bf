package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values", func(t *testing.T) {
		t.Setenv("AJO_AUTH_JWT_SECRET", "dev-secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.Server.Env)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "./data/ajo.db", cfg.Database.Path)
		assert.Equal(t, "https://api.paystack.co", cfg.Gateway.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Engine.GatewayTimeout)
		assert.Equal(t, 15*time.Minute, cfg.Engine.ChargeLockTTL)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.Empty(t, cfg.Redis.Addr)
	})

	t.Run("reads environment overrides", func(t *testing.T) {
		t.Setenv("AJO_AUTH_JWT_SECRET", "dev-secret")
		t.Setenv("AJO_SERVER_PORT", "9090")
		t.Setenv("AJO_GATEWAY_SECRET_KEY", "sk_test_abc")
		t.Setenv("AJO_ENGINE_GATEWAY_TIMEOUT", "5s")
		t.Setenv("AJO_REDIS_ADDR", "localhost:6379")
		t.Setenv("AJO_LOG_LEVEL", "debug")
		t.Setenv("AJO_METRICS_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "sk_test_abc", cfg.Gateway.SecretKey)
		assert.Equal(t, "sk_test_abc", cfg.Gateway.WebhookSecret, "webhook secret defaults to the secret key")
		assert.Equal(t, 5*time.Second, cfg.Engine.GatewayTimeout)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("requires some caller authentication", func(t *testing.T) {
		t.Setenv("AJO_AUTH_JWT_SECRET", "")
		t.Setenv("AJO_AUTH_API_KEY_HASH", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		t.Setenv("AJO_AUTH_JWT_SECRET", "dev-secret")
		t.Setenv("AJO_LOG_LEVEL", "verbose")

		_, err := Load()
		assert.ErrorContains(t, err, "log.level")
	})

	t.Run("lock must outlive gateway calls", func(t *testing.T) {
		t.Setenv("AJO_AUTH_JWT_SECRET", "dev-secret")
		t.Setenv("AJO_ENGINE_GATEWAY_TIMEOUT", "1m")
		t.Setenv("AJO_ENGINE_CHARGE_LOCK_TTL", "30s")

		_, err := Load()
		assert.ErrorContains(t, err, "charge_lock_ttl")
	})
}

func TestValidateProduction(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Server:  ServerConfig{Env: "production"},
			Gateway: GatewayConfig{SecretKey: "sk_live_abc"},
			Auth:    AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing gateway key", mutate: func(c *Config) { c.Gateway.SecretKey = "" }, wantErr: "gateway.secret_key"},
		{name: "test key", mutate: func(c *Config) { c.Gateway.SecretKey = "sk_test_x" }, wantErr: "test key"},
		{name: "short jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: "jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
