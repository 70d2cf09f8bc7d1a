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

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// ProgramConfig describes one SheerID program enrollment.
type ProgramConfig struct {
	ID      string `yaml:"id"`
	Segment string `yaml:"segment"` // teacher | student
	Async   bool   `yaml:"async"`   // approval is asynchronous
}

type SheerIDConfig struct {
	BaseURL       string                   `yaml:"base_url"`
	Timeout       time.Duration            `yaml:"timeout"`
	UploadTimeout time.Duration            `yaml:"upload_timeout"`
	Programs      map[string]ProgramConfig `yaml:"programs"`
}

type VerifyConfig struct {
	Cost         int           `yaml:"cost"`         // points per attempt
	InviteBonus  int           `yaml:"invite_bonus"` // points paid to the inviter
	CheckinBonus int           `yaml:"checkin_bonus"`
	RateLimit    int           `yaml:"rate_limit"` // attempts per window per account
	RateWindow   time.Duration `yaml:"rate_window"`
	Timeout      time.Duration `yaml:"timeout"` // budget for one whole workflow
}

type PollerConfig struct {
	MaxWait  time.Duration `yaml:"max_wait"`
	Interval time.Duration `yaml:"interval"`
}

type GovernorConfig struct {
	RetuneInterval time.Duration `yaml:"retune_interval"`
	HighCPU        float64       `yaml:"high_cpu"`
	HighMemory     float64       `yaml:"high_memory"`
	LowCPU         float64       `yaml:"low_cpu"`
	LowMemory      float64       `yaml:"low_memory"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
	SheerID  SheerIDConfig  `yaml:"sheerid"`
	Verify   VerifyConfig   `yaml:"verify"`
	Poller   PollerConfig   `yaml:"poller"`
	Governor GovernorConfig `yaml:"governor"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.SheerID.BaseURL == "" {
		cfg.SheerID.BaseURL = "https://services.sheerid.com"
	}
	if cfg.SheerID.Timeout <= 0 {
		cfg.SheerID.Timeout = 30 * time.Second
	}
	if cfg.SheerID.UploadTimeout <= 0 {
		cfg.SheerID.UploadTimeout = 60 * time.Second
	}
	if cfg.Verify.Cost <= 0 {
		cfg.Verify.Cost = 5
	}
	if cfg.Verify.InviteBonus <= 0 {
		cfg.Verify.InviteBonus = 2
	}
	if cfg.Verify.CheckinBonus <= 0 {
		cfg.Verify.CheckinBonus = 1
	}
	if cfg.Verify.RateLimit <= 0 {
		cfg.Verify.RateLimit = 3
	}
	if cfg.Verify.RateWindow <= 0 {
		cfg.Verify.RateWindow = time.Minute
	}
	if cfg.Verify.Timeout <= 0 {
		cfg.Verify.Timeout = 3 * time.Minute
	}
	if cfg.Poller.MaxWait <= 0 {
		cfg.Poller.MaxWait = 20 * time.Second
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 5 * time.Second
	}
	if cfg.Governor.RetuneInterval <= 0 {
		cfg.Governor.RetuneInterval = time.Minute
	}
	if cfg.Governor.HighCPU <= 0 {
		cfg.Governor.HighCPU = 80
	}
	if cfg.Governor.HighMemory <= 0 {
		cfg.Governor.HighMemory = 85
	}
	if cfg.Governor.LowCPU <= 0 {
		cfg.Governor.LowCPU = 40
	}
	if cfg.Governor.LowMemory <= 0 {
		cfg.Governor.LowMemory = 60
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if len(cfg.SheerID.Programs) == 0 {
		return nil, errors.New("sheerid.programs is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
