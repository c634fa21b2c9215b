package config

import (
	"errors"
	"fmt"
	"os"

	"orbsync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Sync       SyncConfig       `yaml:"sync"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Notify     NotifyConfig     `yaml:"notify"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type RemoteConfig struct {
	BaseURL               string  `yaml:"base_url"`
	HealthPath            string  `yaml:"health_path"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	ProbeTimeoutSeconds   int     `yaml:"probe_timeout_seconds"`
	ProbeIntervalSeconds  int     `yaml:"probe_interval_seconds"`
	RateLimitRPS          float64 `yaml:"rate_limit_rps"`
	RateLimitBurst        int     `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SyncConfig struct {
	DrainIntervalSeconds int   `yaml:"drain_interval_seconds"`
	DebounceMs           int   `yaml:"debounce_ms"`
	BackoffMs            []int `yaml:"backoff_ms"`
	MaxRetries           int   `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env дополняет окружение, если файл существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote base url is required")
	}

	if c.Database.Path == "" && c.Redis.Address == "" {
		return errors.New("either database path or redis address is required")
	}

	if c.Notify.Telegram.Enabled && c.Notify.Telegram.BotToken == "" {
		return errors.New("telegram notifications enabled without bot token")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "orbsync"
	}
	if c.Remote.HealthPath == "" {
		c.Remote.HealthPath = "/api/health"
	}
	if c.Remote.RequestTimeoutSeconds == 0 {
		c.Remote.RequestTimeoutSeconds = 15
	}
	if c.Remote.ProbeTimeoutSeconds == 0 {
		c.Remote.ProbeTimeoutSeconds = models.DefaultProbeTimeout
	}
	if c.Remote.ProbeIntervalSeconds == 0 {
		c.Remote.ProbeIntervalSeconds = 15
	}
	if c.Remote.RateLimitRPS == 0 {
		c.Remote.RateLimitRPS = 10
	}
	if c.Remote.RateLimitBurst == 0 {
		c.Remote.RateLimitBurst = 5
	}
	if c.Sync.DrainIntervalSeconds == 0 {
		c.Sync.DrainIntervalSeconds = models.DefaultDrainInterval
	}
	if c.Sync.DebounceMs == 0 {
		c.Sync.DebounceMs = models.DefaultDebounceMs
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = models.DefaultMaxRetries
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
