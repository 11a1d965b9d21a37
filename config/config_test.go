package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "chores.db", cfg.DBPath)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, 24*time.Hour, cfg.NewBadgeWindow)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("DEFAULT_TIMEZONE", "Asia/Jerusalem")
	t.Setenv("NEW_BADGE_WINDOW", "12h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 12*time.Hour, cfg.NewBadgeWindow)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jerusalem", loc.String())
}

func TestLoad_RejectsUnknownTimezone(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, mode := range []string{"production", "development"} {
		logger, err := NewLogger(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, logger)
	}
}
