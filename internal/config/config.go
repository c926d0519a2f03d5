// Package config loads application configuration and initializes the
// global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simargl-labs/content-pipeline/internal/cost"
	"github.com/simargl-labs/content-pipeline/internal/pipeline"
	"github.com/simargl-labs/content-pipeline/internal/schedule"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig             `yaml:"store" mapstructure:"store"`
	YouTube   YouTubeConfig           `yaml:"youtube" mapstructure:"youtube"`
	Gemini    GeminiConfig            `yaml:"gemini" mapstructure:"gemini"`
	Quota     QuotaConfig             `yaml:"quota" mapstructure:"quota"`
	Pipeline  pipeline.Config         `yaml:"pipeline" mapstructure:"pipeline"`
	Cost      cost.Rates              `yaml:"cost" mapstructure:"cost"`
	Temporal  schedule.TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Schedules SchedulesConfig         `yaml:"schedules" mapstructure:"schedules"`
	Server    ServerConfig            `yaml:"server" mapstructure:"server"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// QuotaConfig configures admission control and model selection.
type QuotaConfig struct {
	Tier         string   `yaml:"tier" mapstructure:"tier"`
	DefaultModel string   `yaml:"default_model" mapstructure:"default_model"`
	Preference   []string `yaml:"preference" mapstructure:"preference"`
}

// SchedulesConfig holds the repeating job specs.
type SchedulesConfig struct {
	Timezone    string `yaml:"timezone" mapstructure:"timezone"`
	ScanCron    string `yaml:"scan_cron" mapstructure:"scan_cron"`
	CleanupCron string `yaml:"cleanup_cron" mapstructure:"cleanup_cron"`
	PollCron    string `yaml:"poll_cron" mapstructure:"poll_cron"`
}

// ServerConfig configures the ops API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("youtube.rate_per_second", 5)
	v.SetDefault("youtube.rate_burst", 5)
	v.SetDefault("quota.tier", "free")
	v.SetDefault("quota.default_model", "gemini-2.5-flash")
	v.SetDefault("quota.preference", []string{"gemini-2.5-flash-lite", "gemini-2.5-pro"})
	v.SetDefault("pipeline.chunk_seconds", 300)
	v.SetDefault("pipeline.scan_page_size", 50)
	v.SetDefault("pipeline.discovery_lookback", "720h")
	v.SetDefault("pipeline.discovery_max", 25)
	v.SetDefault("cost.chars_per_token", 4)
	v.SetDefault("cost.video_tokens_per_second", 300)
	v.SetDefault("cost.output_allowance", 2048)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "content-pipeline")
	v.SetDefault("schedules.timezone", "America/Chicago")
	v.SetDefault("schedules.scan_cron", "*/5 * * * *")
	v.SetDefault("schedules.cleanup_cron", "0 0 * * *")
	v.SetDefault("schedules.poll_cron", "0 * * * *")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// NormalizedTier returns the configured tier string lowercased,
// defaulting to free.
func (c QuotaConfig) NormalizedTier() string {
	t := strings.ToLower(strings.TrimSpace(c.Tier))
	if t == "" {
		return "free"
	}
	return t
}
