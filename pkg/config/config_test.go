package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file for testing
	testConfigContent := `
log_level: debug
api_port: "9090"
dry_run: false
loki:
  url: http://loki.local:3100
  timeout: 20s
  query_limit: 2000
pipelines:
  device_anomaly:
    enabled: true
    interval: 2m
    window: 10m
    model_path: /models/device.json
    report_threshold: 0.6
    critical_threshold: 0.85
  domain_risk:
    enabled: false
    interval: 5m
    window: 15m
    report_threshold: 0.7
    critical_threshold: 0.9
dedup:
  cooldowns:
    block_domain: 2h
`

	err := os.WriteFile("config.yaml", []byte(testConfigContent), 0644)
	assert.NoError(t, err)
	defer os.Remove("config.yaml") // Clean up the test config file

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.APIPort)
	assert.False(t, cfg.DryRun)

	assert.Equal(t, "http://loki.local:3100", cfg.Loki.URL)
	assert.Equal(t, 20*time.Second, cfg.Loki.Timeout)
	assert.Equal(t, 2000, cfg.Loki.QueryLimit)

	device := cfg.Pipelines["device_anomaly"]
	assert.True(t, device.Enabled)
	assert.Equal(t, 2*time.Minute, device.Interval)
	assert.Equal(t, 10*time.Minute, device.Window)
	assert.Equal(t, "/models/device.json", device.ModelPath)
	assert.Equal(t, 0.6, device.ReportThreshold)
	assert.Equal(t, 0.85, device.CriticalThreshold)

	domain := cfg.Pipelines["domain_risk"]
	assert.False(t, domain.Enabled)

	assert.Equal(t, 2*time.Hour, cfg.Dedup.Cooldowns["block_domain"])

	// Test with environment variable override
	os.Setenv("ORION_API_PORT", "9091")
	defer os.Unsetenv("ORION_API_PORT")

	cfg, err = LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "9091", cfg.APIPort)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "http://localhost:3100", cfg.Loki.URL)
	assert.Equal(t, 30*time.Second, cfg.Response.Interval)
	assert.Equal(t, 2, cfg.Actions.MaxRetries)

	device := cfg.Pipelines["device_anomaly"]
	assert.True(t, device.Enabled)
	assert.Equal(t, 0.7, device.ReportThreshold)
	assert.Equal(t, 0.9, device.CriticalThreshold)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Loki:     LokiConfig{URL: "http://localhost:3100"},
			Response: ResponseConfig{Interval: 30 * time.Second},
			Pipelines: map[string]PipelineConfig{
				"device_anomaly": {
					Enabled:           true,
					Interval:          5 * time.Minute,
					ReportThreshold:   0.7,
					CriticalThreshold: 0.9,
				},
			},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Loki.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	p := cfg.Pipelines["device_anomaly"]
	p.ReportThreshold = 1.3
	cfg.Pipelines["device_anomaly"] = p
	assert.Error(t, cfg.Validate())

	cfg = base()
	p = cfg.Pipelines["device_anomaly"]
	p.CriticalThreshold = 0.5
	cfg.Pipelines["device_anomaly"] = p
	assert.Error(t, cfg.Validate())

	// Equal thresholds are allowed: a single boundary where every
	// reported event is critical.
	cfg = base()
	p = cfg.Pipelines["device_anomaly"]
	p.CriticalThreshold = p.ReportThreshold
	cfg.Pipelines["device_anomaly"] = p
	assert.NoError(t, cfg.Validate())
}
