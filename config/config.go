package config

import (
	"fmt"
	"os"
	"time"

	pkgconfig "scrumboard/pkg/config"
)

// OutboxConfig controls the worker's outbox dispatcher.
type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

// SchedulerConfig controls the worker's cron jobs.
type SchedulerConfig struct {
	Timezone     string `yaml:"timezone"`
	OverdueSpec  string `yaml:"overdue_spec"`
	OverdueLimit int    `yaml:"overdue_limit"`
}

type Config struct {
	DB        pkgconfig.DBConfig     `yaml:"db"`
	MQ        pkgconfig.MQConfig     `yaml:"mq"`
	Redis     pkgconfig.RedisConfig  `yaml:"redis"`
	JWT       pkgconfig.JWTConfig    `yaml:"jwt"`
	Server    pkgconfig.ServerConfig `yaml:"server"`
	OTel      pkgconfig.OTelConfig   `yaml:"otel"`
	Outbox    OutboxConfig           `yaml:"outbox"`
	Scheduler SchedulerConfig        `yaml:"scheduler"`
}

// Load reads config from CONFIG_DIR (default "config") for CONFIG_ENV and
// applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	raw, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := pkgconfig.Decode(raw, cfg); err != nil {
		return nil, err
	}

	// Environment overrides (production)
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideOTelFromEnv(&cfg.OTel)
	if tz := os.Getenv("SCHEDULER_TIMEZONE"); tz != "" {
		cfg.Scheduler.Timezone = tz
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the values used for keys missing from every config file.
func Default() *Config {
	return &Config{
		DB: pkgconfig.DBConfig{
			Host:               "localhost",
			Port:               5432,
			SSLMode:            "disable",
			MaxConns:           10,
			SlowQueryThreshold: 100 * time.Millisecond,
		},
		Server: pkgconfig.ServerConfig{
			Port:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		OTel: pkgconfig.OTelConfig{
			ServiceName: "scrumboard",
		},
		Outbox: OutboxConfig{
			Interval:   time.Second,
			BatchSize:  100,
			MaxRetries: 5,
		},
		Scheduler: SchedulerConfig{
			Timezone:     "UTC",
			OverdueSpec:  "@every 5m",
			OverdueLimit: 500,
		},
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive, got %d", c.Outbox.BatchSize)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}
