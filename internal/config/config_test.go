package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"unical/internal/week"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("timezone: Europe/Moscow\nbackend_url: http://proxy:9000\nslots:\n  - start: \"08:00\"\n    end: \"09:00\"\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Europe/Moscow", cfg.Timezone)
	require.Equal(t, "Europe/Moscow", cfg.SlotTimezone)
	require.Equal(t, "http://proxy:9000", cfg.BackendURL)
	require.Len(t, cfg.Slots, week.SlotCount)
	require.Equal(t, week.DefaultClockSlots, cfg.Slots)
	require.Equal(t, 15, cfg.RequestTimeoutSeconds)
	require.Equal(t, "unical:prefs", cfg.Redis.Prefix)
	require.Nil(t, cfg.BasicAuth)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.CalendarID = "cal-42"
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "cal-42", got.CalendarID)
	require.Equal(t, "admin", got.BasicAuth.Username)
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("UNICAL_REDIS_URL=redis://cache:6379/1\n"), 0o600))

	t.Setenv("UNICAL_BACKEND_URL", "http://override:8000")
	t.Cleanup(func() { os.Unsetenv("UNICAL_REDIS_URL") })

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile, filepath.Join(dir, "missing.env")))
	require.Equal(t, "http://override:8000", cfg.BackendURL)
	require.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}
