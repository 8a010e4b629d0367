package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-id/haven-id/internal/app"
	_ "github.com/haven-id/haven-id/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "secret")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.True(t, cfg.MigrateOnStart)
	require.Equal(t, 720*time.Hour, cfg.SessionTTL)
	require.Equal(t, 24*time.Hour, cfg.VerifyTokenTTL)
	require.Equal(t, 15*time.Minute, cfg.LoginLinkTTL)
	require.Equal(t, time.Hour, cfg.ResetTokenTTL)
	require.Equal(t, "secret", cfg.CSRFSecret)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CSRF_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_ADDR", ":9999")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, ":9999", cfg.AppAddr)
	require.Equal(t, time.Hour, cfg.SessionTTL)
	require.False(t, cfg.MigrateOnStart)
}

func TestLoadConfigRequiresCSRFSecret(t *testing.T) {
	t.Setenv("CSRF_SECRET", "")

	_, err := app.LoadConfig()
	require.Error(t, err)
}
