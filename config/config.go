package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"discleanse/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	KeyToken   = "DISCORD_TOKEN"
	KeyGuildID = "DISCORD_GUILD_ID"
)

// ConfigError reports a missing or invalid setting. It is always fatal.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s environment variable is required", e.Key)
	}
	return fmt.Sprintf("invalid %s: %s", e.Key, e.Reason)
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// SetDefaults registers every known key so that AutomaticEnv and Unmarshal see them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://discord.com/api/v10")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 50)
	v.SetDefault("api.safety_margin", 100*time.Millisecond)
	v.SetDefault("wipe.delete_interval", time.Second)
	v.SetDefault("wipe.age_threshold", 14*24*time.Hour)
	v.SetDefault("wipe.general_last", false)
	v.SetDefault("audit.db_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("schedule.cron", "")
}

// LoadConfig 从多个源加载配置：.env 文件、config.yaml 以及环境变量。
// 加载顺序:
// 1. .env 文件 (用于环境变量)
// 2. config.yaml 或 configPath 指定的文件
// 3. 环境变量覆盖配置文件中的同名设置 (api.timeout -> API_TIMEOUT)
func LoadConfig(v *viper.Viper, configPath string) (*models.Config, error) {
	if err := Read(v, configPath); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Read 只负责把 .env、配置文件和环境变量装入 v，不做校验。
// 不需要凭据的命令 (例如 runs) 直接使用它。
func Read(v *viper.Viper, configPath string) error {
	// .env 文件不存在则忽略。
	if err := godotenv.Load(); err != nil {
		log.Printf("未找到 .env 文件，将跳过加载。")
	}

	SetDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("解析配置文件时发生错误: %w", err)
		}
		log.Printf("未找到配置文件 (config.yaml)，将仅使用环境变量和默认值。")
	}
	return nil
}

// FromViper resolves and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*models.Config, error) {
	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Token = strings.TrimSpace(v.GetString(KeyToken))
	cfg.GuildID = strings.TrimSpace(v.GetString(KeyGuildID))

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings before any remote call is made.
func Validate(cfg *models.Config) error {
	if cfg.Token == "" {
		return &ConfigError{Key: KeyToken}
	}
	if cfg.GuildID == "" {
		return &ConfigError{Key: KeyGuildID}
	}
	if cfg.API.MaxRetries <= 0 {
		return &ConfigError{Key: "api.max_retries", Reason: "must be positive"}
	}
	if cfg.Wipe.DeleteInterval < 0 {
		return &ConfigError{Key: "wipe.delete_interval", Reason: "must not be negative"}
	}
	if cfg.Wipe.AgeThreshold <= 0 {
		return &ConfigError{Key: "wipe.age_threshold", Reason: "must be positive"}
	}
	return nil
}
