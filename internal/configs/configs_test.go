package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "TOKEN_TTL",
		"STORAGE_BACKEND", "DATABASE_URL", "BADGER_PATH", "PERSIST_TIMEOUT",
		"SEED_DEMO_USER", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func Test_Load_Config_Development_Defaults(t *testing.T) {
	clearEnv(t)
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)

	req.True(cfg.IsDevelopment())
	req.Equal(5000, cfg.Port)
	req.Equal(developmentJWTSecret, cfg.JWTSecret)
	req.Equal(time.Hour, cfg.TokenTTL)
	req.Equal(BackendPostgres, cfg.StorageBackend)
	req.NotEmpty(cfg.DatabaseDSN)
	req.Equal(2*time.Second, cfg.PersistTimeout)
	req.True(cfg.SeedDemoUser)
	req.Empty(cfg.AllowedOrigins)
}

func Test_Load_Config_Overrides(t *testing.T) {
	clearEnv(t)
	req := require.New(t)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("STORAGE_BACKEND", "Badger")
	t.Setenv("BADGER_PATH", "/var/lib/rtchat")
	t.Setenv("PERSIST_TIMEOUT", "500ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := LoadConfig()
	req.NoError(err)

	req.False(cfg.IsDevelopment())
	req.Equal(9090, cfg.Port)
	req.Equal("s3cret", cfg.JWTSecret)
	req.Equal(30*time.Minute, cfg.TokenTTL)
	req.Equal(BackendBadger, cfg.StorageBackend)
	req.Equal("/var/lib/rtchat", cfg.BadgerPath)
	req.Equal(500*time.Millisecond, cfg.PersistTimeout)
	req.False(cfg.SeedDemoUser)
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func Test_Load_Config_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"privileged port", map[string]string{"PORT": "80"}},
		{"missing production secret", map[string]string{"ENVIRONMENT": "production", "STORAGE_BACKEND": "memory"}},
		{"missing production dsn", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "x"}},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mongo"}},
		{"bad timeout", map[string]string{"PERSIST_TIMEOUT": "soon"}},
		{"negative ttl", map[string]string{"TOKEN_TTL": "-1h"}},
		{"bad bool", map[string]string{"SEED_DEMO_USER": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
