package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds coordinator configuration. All values have working
// defaults; a config file and flags only override.
type Config struct {
	StationRoot string      `yaml:"station_root"`
	Pulse       PulseConfig `yaml:"pulse"`
	Serve       ServeConfig `yaml:"serve"`
	Log         LogConfig   `yaml:"log"`
}

// PulseConfig tunes the pulse cycle
type PulseConfig struct {
	TelemetryWindowSeconds int `yaml:"telemetry_window_seconds"` // heartbeat/CSV freshness window
	PrioritizeLimit        int `yaml:"prioritize_limit"`         // intents considered per pulse
	MaxExecutions          int `yaml:"max_executions"`           // executions dispatched per pulse
	ClaimWindowSeconds     int `yaml:"claim_window_seconds"`     // manifest claim exclusivity
	StallThresholdSeconds  int `yaml:"stall_threshold_seconds"`  // execution age before escalation

	// RetainFailedIntents keeps intents in the queue after a failed or
	// errored execution instead of removing them.
	RetainFailedIntents bool `yaml:"retain_failed_intents"`
}

// ServeConfig tunes the serve loop
type ServeConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"` // seconds between timer pulses
	Watch           bool   `yaml:"watch"`            // pulse on heartbeat file changes
	ListenAddr      string `yaml:"listen_addr"`      // metrics/health address, empty = disabled
}

// LogConfig tunes logging output
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Default returns a Config with all defaults applied. StationRoot
// defaults to the current directory.
func Default() *Config {
	return &Config{
		StationRoot: ".",
		Pulse: PulseConfig{
			TelemetryWindowSeconds: 300,
			PrioritizeLimit:        5,
			MaxExecutions:          2,
			ClaimWindowSeconds:     300,
			StallThresholdSeconds:  900,
		},
		Serve: ServeConfig{
			IntervalSeconds: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks for values that would make the coordinator misbehave
func (c *Config) Validate() error {
	if c.StationRoot == "" {
		return fmt.Errorf("station_root must not be empty")
	}
	if c.Pulse.TelemetryWindowSeconds <= 0 {
		return fmt.Errorf("pulse.telemetry_window_seconds must be positive, got %d", c.Pulse.TelemetryWindowSeconds)
	}
	if c.Pulse.PrioritizeLimit <= 0 {
		return fmt.Errorf("pulse.prioritize_limit must be positive, got %d", c.Pulse.PrioritizeLimit)
	}
	if c.Pulse.MaxExecutions < 0 {
		return fmt.Errorf("pulse.max_executions must not be negative, got %d", c.Pulse.MaxExecutions)
	}
	if c.Pulse.ClaimWindowSeconds <= 0 {
		return fmt.Errorf("pulse.claim_window_seconds must be positive, got %d", c.Pulse.ClaimWindowSeconds)
	}
	if c.Pulse.StallThresholdSeconds <= 0 {
		return fmt.Errorf("pulse.stall_threshold_seconds must be positive, got %d", c.Pulse.StallThresholdSeconds)
	}
	if c.Serve.IntervalSeconds <= 0 {
		return fmt.Errorf("serve.interval_seconds must be positive, got %d", c.Serve.IntervalSeconds)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// TelemetryWindow returns the heartbeat/CSV freshness window
func (p PulseConfig) TelemetryWindow() time.Duration {
	return time.Duration(p.TelemetryWindowSeconds) * time.Second
}

// ClaimWindow returns the manifest claim exclusivity window
func (p PulseConfig) ClaimWindow() time.Duration {
	return time.Duration(p.ClaimWindowSeconds) * time.Second
}

// StallThreshold returns the execution age that counts as stalled
func (p PulseConfig) StallThreshold() time.Duration {
	return time.Duration(p.StallThresholdSeconds) * time.Second
}

// Interval returns the serve loop pulse interval
func (s ServeConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}
