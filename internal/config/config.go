package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvRedisURL = "PODKEEP_REDIS_URL"
	EnvUserID   = "PODKEEP_USER_ID"

	defaultRedisURL       = "redis://localhost:6379/0"
	defaultUserID         = "local"
	defaultCacheLimitMB   = 500
	defaultTimeoutSeconds = 300
	defaultDataSubdir     = ".podkeep"
)

type DownloadConfig struct {
	CacheLimitMB   int64 `yaml:"cache_limit_mb"`
	TimeoutSeconds int   `yaml:"timeout_seconds"`
}

func (c *DownloadConfig) CacheLimitBytes() int64 {
	return c.CacheLimitMB * 1024 * 1024
}

func (c *DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type FileStoreConfig struct {
	// DataDir is the app-private document root; downloads and the metadata
	// cache live in subdirectories of it.
	DataDir string `yaml:"data_dir"`
}

type Config struct {
	RedisURL       string          `yaml:"redis_url"`
	LogLevel       string          `yaml:"log_level"`
	UserID         string          `yaml:"user_id"`
	StorageConfig  FileStoreConfig `yaml:"storage"`
	DownloadConfig DownloadConfig  `yaml:"download"`
}

func (c *Config) SetDefaults() {
	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.UserID == "" {
		c.UserID = defaultUserID
	}
	if c.StorageConfig.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.StorageConfig.DataDir = filepath.Join(home, defaultDataSubdir)
	}
	if c.DownloadConfig.CacheLimitMB <= 0 {
		c.DownloadConfig.CacheLimitMB = defaultCacheLimitMB
	}
	if c.DownloadConfig.TimeoutSeconds <= 0 {
		c.DownloadConfig.TimeoutSeconds = defaultTimeoutSeconds
	}
}

// Load reads the config file, applies defaults and environment overrides.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if url := os.Getenv(EnvRedisURL); url != "" {
		cfg.RedisURL = url
	}
	if user := os.Getenv(EnvUserID); user != "" {
		cfg.UserID = user
	}

	cfg.SetDefaults()

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
