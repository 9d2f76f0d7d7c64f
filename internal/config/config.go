package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig holds everything the server needs at startup. REDIS_URL and
// DATABASE_URL are optional: leaving them empty disables the snapshot store
// and the game archive respectively.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	OpsAddr    string `yaml:"ops_addr"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	MaxSessions    int `yaml:"max_sessions"`
	SendTimeoutSec int `yaml:"send_timeout_sec"`
}

// Load builds the config from defaults, an optional YAML file pointed at by
// ARENA_CONFIG, and finally environment variable overrides.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":8080",
		MaxSessions:    500,
		SendTimeoutSec: 5,
	}

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("OPS_ADDR")); v != "" {
		cfg.OpsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendTimeoutSec = n
		}
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, fmt.Errorf("LISTEN_ADDR is required")
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
