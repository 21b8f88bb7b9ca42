package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("SLA_SWEEP_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "*/5 * * * *", cfg.Sweep.Schedule)
	assert.Equal(t, 30*24*time.Hour, cfg.Notification.LedgerTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("SLA_SWEEP_ENABLED", "false")
	t.Setenv("SLA_SWEEP_LOCK_TTL_SECONDS", "not-a-number")
	t.Setenv("SLA_SWEEP_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, 240*time.Second, cfg.Sweep.LockTTL())
	assert.Equal(t, "Europe/Berlin", cfg.Sweep.Location().String())
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid REDIS_DB")
}

func TestSweepLocationFallsBackToUTC(t *testing.T) {
	cfg := SweepConfig{Timezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, cfg.Location())
}
