// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // credential cache TTL
}

type PaymentsConfig struct {
	CallbackBaseURL string        `yaml:"callback_base_url"` // public base for provider callbacks
	Tolerance       int64         `yaml:"tolerance"`         // accepted amount delta in minor units
	LinkSecret      string        `yaml:"link_secret"`       // signs public payment-link tokens
	LinkTTL         time.Duration `yaml:"link_ttl"`
	SessionSecret   string        `yaml:"session_secret"` // verifies API session JWTs
	CallbackRate    int           `yaml:"callback_rate"`  // callbacks allowed per source per window
	CallbackWindow  time.Duration `yaml:"callback_window"`
}

type ReconcilerConfig struct {
	Interval     time.Duration `yaml:"interval"`      // how often the sweeper runs
	StaleAfter   time.Duration `yaml:"stale_after"`   // pending age before a status re-query
	AbandonAfter time.Duration `yaml:"abandon_after"` // pending age before giving up
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // AES key for credentials at rest
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payments.Tolerance < 0 {
		cfg.Payments.Tolerance = 0
	}
	if cfg.Payments.LinkTTL <= 0 {
		cfg.Payments.LinkTTL = 24 * time.Hour
	}
	if cfg.Payments.CallbackRate <= 0 {
		cfg.Payments.CallbackRate = 60
	}
	if cfg.Payments.CallbackWindow <= 0 {
		cfg.Payments.CallbackWindow = time.Minute
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 15 * time.Minute
	}
	if cfg.Reconciler.AbandonAfter <= 0 {
		cfg.Reconciler.AbandonAfter = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payments.CallbackBaseURL == "" {
		return nil, errors.New("payments.callback_base_url is required")
	}
	if cfg.Payments.LinkSecret == "" {
		return nil, errors.New("payments.link_secret is required")
	}
	if cfg.Payments.SessionSecret == "" {
		return nil, errors.New("payments.session_secret is required")
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("security.encryption_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
