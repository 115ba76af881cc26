package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	require.Equal(t, defaultRedisURL, cfg.RedisURL)
	require.Equal(t, LogLevelInfo, cfg.LogLevel)
	require.Equal(t, defaultUserID, cfg.UserID)
	require.NotEmpty(t, cfg.StorageConfig.DataDir)
	require.Equal(t, int64(500*1024*1024), cfg.DownloadConfig.CacheLimitBytes())
}

func TestLoadFile(t *testing.T) {
	content := `
redis_url: redis://redis.internal:6379/1
log_level: debug
user_id: u1
storage:
  data_dir: /data/podkeep
download:
  cache_limit_mb: 100
  timeout_seconds: 60
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "redis://redis.internal:6379/1", cfg.RedisURL)
	require.Equal(t, LogLevelDebug, cfg.LogLevel)
	require.Equal(t, "u1", cfg.UserID)
	require.Equal(t, "/data/podkeep", cfg.StorageConfig.DataDir)
	require.Equal(t, int64(100*1024*1024), cfg.DownloadConfig.CacheLimitBytes())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://override:6379/0")
	t.Setenv(EnvUserID, "u2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	require.Equal(t, "redis://override:6379/0", cfg.RedisURL)
	require.Equal(t, "u2", cfg.UserID)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("redis_url: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
