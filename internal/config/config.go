package config

import (
	"errors"
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
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PaymentGatewaysConfig struct {
	PortOne struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
		PG        string `yaml:"pg"`
	} `yaml:"portone"`
	KakaoPay struct {
		SecretKey string `yaml:"secret_key"`
		CID       string `yaml:"cid"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"kakaopay"`
	CallbackBaseURL string `yaml:"callback_base_url"`
	ResultURL       string `yaml:"result_url"` // where the browser lands after reconciliation
}

type BillingConfig struct {
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	SweepLockTTL       time.Duration `yaml:"sweep_lock_ttl"`
	BatchSize          int           `yaml:"batch_size"`
	PastDueThreshold   int           `yaml:"past_due_threshold"`
	AutoCancelAfter    time.Duration `yaml:"auto_cancel_after"`
	MaxChargeAttempts  int           `yaml:"max_charge_attempts"`
	ChargeBaseBackoff  time.Duration `yaml:"charge_base_backoff"`
	ChargeMaxBackoff   time.Duration `yaml:"charge_max_backoff"`
	IntentTTL          time.Duration `yaml:"intent_ttl"`
	IntentSweepEvery   time.Duration `yaml:"intent_sweep_every"`
	ReconcileStaleAge  time.Duration `yaml:"reconcile_stale_age"`
	ReconcileSweepEach time.Duration `yaml:"reconcile_sweep_each"`
	StatsEvery         time.Duration `yaml:"stats_every"`
}

type SecurityConfig struct {
	AdminJWTSecret string `yaml:"admin_jwt_secret"`
}

type NotifyConfig struct {
	Endpoint string `yaml:"endpoint"` // notification service URL; empty logs only
}

type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Log      LogConfig             `yaml:"log"`
	Database DatabaseConfig        `yaml:"database"`
	Redis    RedisConfig           `yaml:"redis"`
	Gateways PaymentGatewaysConfig `yaml:"gateways"`
	Billing  BillingConfig         `yaml:"billing"`
	Security SecurityConfig        `yaml:"security"`
	Notify   NotifyConfig          `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
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
		cfg.Server.WriteTimeout = 15 * time.Second
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
	if cfg.Gateways.ResultURL == "" {
		cfg.Gateways.ResultURL = "/payments/result"
	}
	if cfg.Billing.SweepInterval <= 0 {
		cfg.Billing.SweepInterval = time.Hour
	}
	if cfg.Billing.SweepLockTTL <= 0 {
		cfg.Billing.SweepLockTTL = 10 * time.Minute
	}
	if cfg.Billing.BatchSize <= 0 {
		cfg.Billing.BatchSize = 200
	}
	if cfg.Billing.PastDueThreshold <= 0 {
		cfg.Billing.PastDueThreshold = 3
	}
	if cfg.Billing.AutoCancelAfter <= 0 {
		cfg.Billing.AutoCancelAfter = 14 * 24 * time.Hour
	}
	if cfg.Billing.MaxChargeAttempts <= 0 {
		cfg.Billing.MaxChargeAttempts = 3
	}
	if cfg.Billing.ChargeBaseBackoff <= 0 {
		cfg.Billing.ChargeBaseBackoff = 2 * time.Second
	}
	if cfg.Billing.ChargeMaxBackoff <= 0 {
		cfg.Billing.ChargeMaxBackoff = 30 * time.Second
	}
	if cfg.Billing.IntentTTL <= 0 {
		cfg.Billing.IntentTTL = time.Hour
	}
	if cfg.Billing.IntentSweepEvery <= 0 {
		cfg.Billing.IntentSweepEvery = 5 * time.Minute
	}
	if cfg.Billing.ReconcileStaleAge <= 0 {
		cfg.Billing.ReconcileStaleAge = 10 * time.Minute
	}
	if cfg.Billing.ReconcileSweepEach <= 0 {
		cfg.Billing.ReconcileSweepEach = 5 * time.Minute
	}
	if cfg.Billing.StatsEvery <= 0 {
		cfg.Billing.StatsEvery = 5 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Security.AdminJWTSecret == "" {
		return nil, errors.New("security.admin_jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
