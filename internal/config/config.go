// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"framemeter/internal/collector"
	"framemeter/internal/ratelimit"
	"framemeter/internal/tracker"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultFrameInterval is the frame interval assumed when a trace does not
// carry one.
const DefaultFrameInterval = 16666667 * time.Nanosecond

// Config is the root configuration structure.
type Config struct {
	Tracker    TrackerConfig         `yaml:"tracker"`
	Contracts  ContractsConfig       `yaml:"contracts"`
	Replay     ReplayConfig          `yaml:"replay"`
	Log        LogConfig             `yaml:"log"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`
}

// TrackerConfig tunes frame sequence tracking and summary sampling.
type TrackerConfig struct {
	ReportWindow       time.Duration `yaml:"report_window"`
	MinFrames          uint32        `yaml:"min_frames"`
	FrameTokenGap      uint32        `yaml:"frame_token_gap"`
	SummarySampleEvery int           `yaml:"summary_sample_every"`
}

// ContractsConfig controls what a violated internal contract does.
type ContractsConfig struct {
	Strict bool `yaml:"strict"`
}

// ReplayConfig controls trace replay.
type ReplayConfig struct {
	// Pace limits replayed events per second; 0 replays as fast as possible.
	Pace            float64       `yaml:"pace"`
	DefaultInterval time.Duration `yaml:"default_interval"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig reads, parses and validates a YAML configuration file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	def := tracker.DefaultSettings()
	if c.Tracker.ReportWindow == 0 {
		c.Tracker.ReportWindow = def.ReportWindow
	}
	if c.Tracker.MinFrames == 0 {
		c.Tracker.MinFrames = def.MinFramesForReporting
	}
	if c.Tracker.FrameTokenGap == 0 {
		c.Tracker.FrameTokenGap = def.FrameTokenGap
	}
	if c.Tracker.SummarySampleEvery == 0 {
		c.Tracker.SummarySampleEvery = ratelimit.DefaultSampleEvery
	}
	if c.Replay.DefaultInterval == 0 {
		c.Replay.DefaultInterval = DefaultFrameInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = logrus.WarnLevel.String()
	}
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Tracker.ReportWindow < 0 {
		errs = append(errs, fmt.Errorf("tracker.report_window must not be negative, got %v", c.Tracker.ReportWindow))
	}
	if c.Tracker.SummarySampleEvery < 0 {
		errs = append(errs, fmt.Errorf("tracker.summary_sample_every must not be negative, got %d", c.Tracker.SummarySampleEvery))
	}
	if c.Replay.Pace < 0 {
		errs = append(errs, fmt.Errorf("replay.pace must not be negative, got %v", c.Replay.Pace))
	}
	if c.Replay.DefaultInterval < 0 {
		errs = append(errs, fmt.Errorf("replay.default_interval must not be negative, got %v", c.Replay.DefaultInterval))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TrackerSettings converts the tracker section for the tracker package.
func (c *Config) TrackerSettings() tracker.Settings {
	return tracker.Settings{
		ReportWindow:          c.Tracker.ReportWindow,
		MinFramesForReporting: c.Tracker.MinFrames,
		FrameTokenGap:         c.Tracker.FrameTokenGap,
	}
}

// LogLevel returns the parsed log level, falling back to warn.
func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}
