package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  path: "+filepath.Join(dir, "db", "test.db")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Jakarta", cfg.Booking.Timezone)
	assert.Equal(t, 15*time.Minute, cfg.GracePeriod())
	assert.Equal(t, time.Minute, cfg.AutoCompleteInterval())
	assert.Equal(t, 500, cfg.AutoCompleteBatchSize())
	assert.Equal(t, "booking-transitions", cfg.Kafka.Topic)
	assert.Equal(t, 8080, cfg.HTTPPort())
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoadExpandsEnvAndSeeds(t *testing.T) {
	t.Setenv("FB_TEST_REDIS", "localhost:6380")
	dir := t.TempDir()
	path := writeConfig(t, `
database:
  path: `+filepath.Join(dir, "f.db")+`
redis:
  address: ${FB_TEST_REDIS}
booking:
  timezone: UTC
  grace_period_minutes: 30
fields:
  - id: 1
    name: F1
    open_time: "06:00"
    close_time: "24:00"
  - id: 2
    name: F2
    open_time: "08:00"
    close_time: "22:00"
    active: false
users:
  - id: 10
    name: Rina
    role: cashier
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6380", cfg.Redis.Address)
	assert.Equal(t, 30*time.Minute, cfg.GracePeriod())
	assert.Equal(t, time.UTC, cfg.Location())
	require.Len(t, cfg.Fields, 2)
	assert.True(t, cfg.Fields[0].IsActive())
	assert.False(t, cfg.Fields[1].IsActive())
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "cashier", cfg.Users[0].Role)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  path: "+filepath.Join(dir, "f.db")+"\nbooking:\n  timezone: Mars/Olympus\n")

	_, err := Load(path)
	assert.Error(t, err)
}
