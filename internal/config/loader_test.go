package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config should have been written")
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9999\"\nauth_timeout: 30s\nseed_demo_users: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LINECHAT_ACTIVITY_TIMEOUT", "45s")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 45*time.Second, cfg.ActivityTimeout)
	assert.False(t, cfg.SeedDemoUsers)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.WatchdogInterval = 2 * time.Second
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.AuthTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", ActivityTimeout: time.Minute})

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.ActivityTimeout)
	assert.Equal(t, Default().AuthTimeout, cfg.AuthTimeout)
}
