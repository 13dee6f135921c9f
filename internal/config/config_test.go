package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadConfig_Full(t *testing.T) {
	content := `
tracker:
  report_window: 2s
  min_frames: 50
  frame_token_gap: 5
  summary_sample_every: 10
contracts:
  strict: true
replay:
  pace: 200
  default_interval: 8ms
log:
  level: debug
thresholds:
  durations:
    CompositorLatency.TotalLatency:
      p95: 50ms
  percentages:
    Graphics.Smoothness.PercentDroppedFrames.AllSequences:
      max: "10%"
`
	cfg := loadConfigFromString(t, content)

	if cfg.Tracker.ReportWindow != 2*time.Second {
		t.Errorf("expected report window 2s, got %v", cfg.Tracker.ReportWindow)
	}
	if cfg.Tracker.MinFrames != 50 {
		t.Errorf("expected min frames 50, got %d", cfg.Tracker.MinFrames)
	}
	if cfg.Tracker.FrameTokenGap != 5 {
		t.Errorf("expected token gap 5, got %d", cfg.Tracker.FrameTokenGap)
	}
	if cfg.Tracker.SummarySampleEvery != 10 {
		t.Errorf("expected sample every 10, got %d", cfg.Tracker.SummarySampleEvery)
	}
	if !cfg.Contracts.Strict {
		t.Error("expected strict contracts")
	}
	if cfg.Replay.Pace != 200 {
		t.Errorf("expected pace 200, got %v", cfg.Replay.Pace)
	}
	if cfg.Replay.DefaultInterval != 8*time.Millisecond {
		t.Errorf("expected interval 8ms, got %v", cfg.Replay.DefaultInterval)
	}
	if cfg.LogLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", cfg.LogLevel())
	}
	if cfg.Thresholds == nil {
		t.Fatal("expected thresholds")
	}
	if got := cfg.Thresholds.Durations["CompositorLatency.TotalLatency"].P95; got != 50*time.Millisecond {
		t.Errorf("expected p95 threshold 50ms, got %v", got)
	}
	if got := cfg.Thresholds.Percentages["Graphics.Smoothness.PercentDroppedFrames.AllSequences"].Max; got != "10%" {
		t.Errorf("expected max threshold 10%%, got %q", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfigFromString(t, "contracts:\n  strict: false\n")

	if cfg.Tracker.ReportWindow != 5*time.Second {
		t.Errorf("expected default report window 5s, got %v", cfg.Tracker.ReportWindow)
	}
	if cfg.Tracker.MinFrames != 100 {
		t.Errorf("expected default min frames 100, got %d", cfg.Tracker.MinFrames)
	}
	if cfg.Tracker.FrameTokenGap != 3 {
		t.Errorf("expected default token gap 3, got %d", cfg.Tracker.FrameTokenGap)
	}
	if cfg.Tracker.SummarySampleEvery != 100 {
		t.Errorf("expected default sample every 100, got %d", cfg.Tracker.SummarySampleEvery)
	}
	if cfg.Replay.DefaultInterval != DefaultFrameInterval {
		t.Errorf("expected default interval %v, got %v", DefaultFrameInterval, cfg.Replay.DefaultInterval)
	}
	if cfg.LogLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level, got %v", cfg.LogLevel())
	}
	if cfg.Thresholds != nil {
		t.Error("expected no thresholds")
	}
}

func TestDefault_MatchesTrackerSettings(t *testing.T) {
	s := Default().TrackerSettings()
	if s.ReportWindow != 5*time.Second || s.MinFramesForReporting != 100 || s.FrameTokenGap != 3 {
		t.Errorf("expected 5s/100/3, got %+v", s)
	}
}

func TestLoadConfig_ValidationJoinsErrors(t *testing.T) {
	content := `
replay:
  pace: -1
log:
  level: loud
thresholds:
  percentages:
    x:
      max: "ten"
`
	tmpFile := createTempFile(t, content)

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"replay.pace", "log.level", "threshold x"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := `
tracker:
  report_window: "5s
  min_frames: [[[invalid
`
	tmpFile := createTempFile(t, content)
	defer os.Remove(tmpFile)

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	tmpFile := createTempFile(t, "")
	defer os.Remove(tmpFile)

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Contracts.Strict {
		t.Error("expected lenient contracts by default")
	}
}

// Helper functions

func loadConfigFromString(t *testing.T, content string) *Config {
	t.Helper()
	tmpFile := createTempFile(t, content)
	defer os.Remove(tmpFile)

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}
