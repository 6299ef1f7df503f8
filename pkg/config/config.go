package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration struct for the application.
// It holds settings for logging, the API, the log backend, and every
// detection pipeline and response component.
// Tags are used by Viper to map YAML keys to struct fields.
type Config struct {
	LogLevel  string                    `mapstructure:"log_level"`
	APIPort   string                    `mapstructure:"api_port"`
	DryRun    bool                      `mapstructure:"dry_run"`
	Loki      LokiConfig                `mapstructure:"loki"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Pihole    PiholeConfig              `mapstructure:"pihole"`
	Notify    NotifyConfig              `mapstructure:"notify"`
	Playbooks PlaybooksConfig           `mapstructure:"playbooks"`
	Dedup     DedupConfig               `mapstructure:"dedup"`
	Response  ResponseConfig            `mapstructure:"response"`
	Pipelines map[string]PipelineConfig `mapstructure:"pipelines"`
	Intel     IntelConfig               `mapstructure:"intel"`
	Collector CollectorConfig           `mapstructure:"collector"`
	Actions   ActionsConfig             `mapstructure:"actions"`
}

// LokiConfig points the service at its Loki log backend.
type LokiConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	QueryLimit int           `mapstructure:"query_limit"`
}

// RedisConfig enables the Redis-backed dedup guard and IOC store. When
// disabled both fall back to in-memory implementations.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PiholeConfig configures the block_domain action provider. An empty
// api_url leaves the provider in simulate-only mode.
type PiholeConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NotifyConfig configures the notify action provider.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PlaybooksConfig locates the response playbook file.
type PlaybooksConfig struct {
	Path       string `mapstructure:"path"`
	AllowEmpty bool   `mapstructure:"allow_empty"`
	Watch      bool   `mapstructure:"watch"`
}

// DedupConfig tunes the action dedup guard. Cooldowns are keyed by
// action type; actions without an entry use the dispatcher default.
type DedupConfig struct {
	SweepInterval time.Duration            `mapstructure:"sweep_interval"`
	Cooldowns     map[string]time.Duration `mapstructure:"cooldowns"`
}

// ResponseConfig tunes the response loop that matches fresh security
// events against playbooks.
type ResponseConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// PipelineConfig defines one detection pipeline: how often it runs, how
// far back it reads telemetry, which model artifact it loads and the
// score thresholds that turn scores into events.
type PipelineConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	Window            time.Duration `mapstructure:"window"`
	ModelPath         string        `mapstructure:"model_path"`
	ReportThreshold   float64       `mapstructure:"report_threshold"`
	CriticalThreshold float64       `mapstructure:"critical_threshold"`
}

// IntelFeedConfig is one threat-intel blocklist feed.
type IntelFeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// IntelConfig configures the IOC store refresh task.
type IntelConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Interval  time.Duration     `mapstructure:"interval"`
	Retention time.Duration     `mapstructure:"retention"`
	Feeds     []IntelFeedConfig `mapstructure:"feeds"`
}

// CollectorConfig configures the training-data collector task.
type CollectorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Window    time.Duration `mapstructure:"window"`
	OutputDir string        `mapstructure:"output_dir"`
}

// ActionsConfig holds the global configuration for response actions.
type ActionsConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// LoadConfig reads the configuration from a YAML file (e.g., config.yaml) and
// environment variables. It uses Viper for robust configuration management,
// allowing for defaults and environment variable overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orion-ai/")

	setDefaults(v)

	// Read environment variables with an ORION_ prefix, dots replaced
	// with underscores for nested keys.
	v.SetEnvPrefix("ORION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("api_port", "8080")
	v.SetDefault("dry_run", true)

	v.SetDefault("loki.url", "http://localhost:3100")
	v.SetDefault("loki.timeout", "30s")
	v.SetDefault("loki.query_limit", 5000)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("pihole.timeout", "10s")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("playbooks.path", "playbooks.yaml")
	v.SetDefault("playbooks.allow_empty", false)
	v.SetDefault("playbooks.watch", true)

	v.SetDefault("dedup.sweep_interval", "1m")

	v.SetDefault("response.interval", "30s")
	v.SetDefault("response.lookback", "5m")

	v.SetDefault("pipelines.device_anomaly.enabled", true)
	v.SetDefault("pipelines.device_anomaly.interval", "5m")
	v.SetDefault("pipelines.device_anomaly.window", "15m")
	v.SetDefault("pipelines.device_anomaly.report_threshold", 0.7)
	v.SetDefault("pipelines.device_anomaly.critical_threshold", 0.9)

	v.SetDefault("pipelines.domain_risk.enabled", true)
	v.SetDefault("pipelines.domain_risk.interval", "5m")
	v.SetDefault("pipelines.domain_risk.window", "15m")
	v.SetDefault("pipelines.domain_risk.report_threshold", 0.7)
	v.SetDefault("pipelines.domain_risk.critical_threshold", 0.9)

	v.SetDefault("intel.enabled", false)
	v.SetDefault("intel.interval", "6h")
	v.SetDefault("intel.retention", "48h")

	v.SetDefault("collector.enabled", false)
	v.SetDefault("collector.interval", "1h")
	v.SetDefault("collector.window", "1h")
	v.SetDefault("collector.output_dir", "./training-data")

	v.SetDefault("actions.max_retries", 2)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Loki.URL == "" {
		return fmt.Errorf("loki.url must be set")
	}
	for name, p := range c.Pipelines {
		if p.ReportThreshold < 0 || p.ReportThreshold > 1 {
			return fmt.Errorf("pipeline %s: report_threshold %.2f out of range [0,1]", name, p.ReportThreshold)
		}
		if p.CriticalThreshold < 0 || p.CriticalThreshold > 1 {
			return fmt.Errorf("pipeline %s: critical_threshold %.2f out of range [0,1]", name, p.CriticalThreshold)
		}
		if p.CriticalThreshold < p.ReportThreshold {
			return fmt.Errorf("pipeline %s: critical_threshold below report_threshold", name)
		}
		if p.Enabled && p.Interval <= 0 {
			return fmt.Errorf("pipeline %s: interval must be positive", name)
		}
	}
	if c.Response.Interval <= 0 {
		return fmt.Errorf("response.interval must be positive")
	}
	return nil
}
