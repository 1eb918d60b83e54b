package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "mongodb://127.0.0.1:27017", cfg.Mongo.URI)
	assert.Equal(t, "chatsync", cfg.Mongo.Database)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 10*time.Second, cfg.Typing.StalenessThreshold)
	assert.Equal(t, 30, cfg.Server.AuthRateLimit)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MONGODB_DATABASE", "chatsync_test")
	t.Setenv("JWT_EXPIRATION", "1h")
	t.Setenv("TYPING_STALENESS_THRESHOLD", "3s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "chatsync_test", cfg.Mongo.Database)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 3*time.Second, cfg.Typing.StalenessThreshold)
}

func TestLoadIgnoresBadDuration(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "not-a-duration")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults in development", func(cfg *Config) {}, false},
		{"empty port", func(cfg *Config) { cfg.Server.Port = "" }, true},
		{"empty mongo uri", func(cfg *Config) { cfg.Mongo.URI = "" }, true},
		{"empty jwt secret", func(cfg *Config) { cfg.JWT.Secret = "" }, true},
		{"dev secret in production", func(cfg *Config) { cfg.Server.Env = "production" }, true},
		{"real secret in production", func(cfg *Config) {
			cfg.Server.Env = "production"
			cfg.JWT.Secret = "a-proper-secret"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
