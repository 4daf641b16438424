package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables honored by the config layer.
const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file. The
// DB_CONNECTION environment variable overrides the file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// RedisConfig holds settings for the optional rate limit window summary.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// defaultRedisPrefix namespaces window keys when the config omits one.
const defaultRedisPrefix = "travelcore:rl"

// LoadRedisConfig loads the rate limit Redis settings from the YAML config
// file. A missing or unreadable file yields a disabled config.
func LoadRedisConfig(configPath string) RedisConfig {
	// fileConfig maps the YAML fields needed for Redis settings.
	type fileConfig struct {
		RateLimitRedis RedisConfig `yaml:"ratelimit-redis"`
	}

	var result RedisConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.RateLimitRedis
		}
	}

	result.Addr = strings.TrimSpace(result.Addr)
	result.Password = strings.TrimSpace(result.Password)
	result.Prefix = strings.TrimSpace(result.Prefix)
	if result.Prefix == "" {
		result.Prefix = defaultRedisPrefix
	}
	if result.DB < 0 {
		result.DB = 0
	}
	if result.Addr == "" {
		result.Enabled = false
	}
	return result
}

// PolicySyncConfig holds settings for the optional policy bundle syncer.
type PolicySyncConfig struct {
	URL             string `yaml:"url"`
	IntervalMinutes int    `yaml:"interval-minutes"`
}

// LoadPolicySyncConfig loads the policy bundle syncer settings from the YAML
// config file. An empty URL disables the syncer.
func LoadPolicySyncConfig(configPath string) PolicySyncConfig {
	// fileConfig maps the YAML fields needed for policy sync settings.
	type fileConfig struct {
		PolicySync PolicySyncConfig `yaml:"policy-sync"`
	}

	var result PolicySyncConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.PolicySync
		}
	}

	result.URL = strings.TrimSpace(result.URL)
	if result.IntervalMinutes < 0 {
		result.IntervalMinutes = 0
	}
	return result
}

// LoadPort reads the server port from the YAML config file, falling back to
// the given default for missing or invalid values.
func LoadPort(configPath string, defaultPort int) int {
	// fileConfig maps the YAML fields needed for the port.
	type fileConfig struct {
		Port int `yaml:"port"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return defaultPort
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return defaultPort
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return defaultPort
	}
	return cfg.Port
}
