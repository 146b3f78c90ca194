package models

import "time"

// Config is the resolved runtime configuration. Token and GuildID come from
// the environment, everything else may also be set in config.yaml.
type Config struct {
	Token    string         `mapstructure:"-"`
	GuildID  string         `mapstructure:"-"`
	API      APIConfig      `mapstructure:"api"`
	Wipe     WipeConfig     `mapstructure:"wipe"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// APIConfig controls the REST gateway.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`   // bound on consecutive 429 retries
	SafetyMargin time.Duration `mapstructure:"safety_margin"` // added to every rate-limit sleep
}

// WipeConfig controls deletion pacing and ordering.
type WipeConfig struct {
	DeleteInterval time.Duration `mapstructure:"delete_interval"`
	AgeThreshold   time.Duration `mapstructure:"age_threshold"`
	GeneralLast    bool          `mapstructure:"general_last"`
}

// AuditConfig points at the optional sqlite deletion log.
type AuditConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}
