package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ferrocp.yaml")
	doc := `
buffer_size: 1048576
thread_count: 4
enable_memory_mapping: true
compression:
  algorithm: zstd
  level: 3
features:
  enable_verification: true
  verification_algorithm: sha256
resume:
  max_retries: 5
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BufferSize != 1048576 || cfg.ThreadCount != 4 || !cfg.EnableMemoryMapping {
		t.Fatalf("unexpected top-level fields: %+v", cfg)
	}
	if cfg.Compression.Algorithm != "zstd" || cfg.Compression.Level != 3 {
		t.Fatalf("unexpected compression: %+v", cfg.Compression)
	}
	if !cfg.Features.EnableVerification || cfg.Features.VerificationAlgorithm != "sha256" {
		t.Fatalf("unexpected features: %+v", cfg.Features)
	}
	if cfg.Resume.MaxRetries != 5 {
		t.Fatalf("unexpected resume: %+v", cfg.Resume)
	}
	// Untouched defaults should survive the partial overlay.
	if cfg.Resume.ResumeDir != ".ferrocp_resume" {
		t.Fatalf("expected default resume dir to survive overlay, got %q", cfg.Resume.ResumeDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("overlaid config should validate, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	t.Setenv("FERROCP_THREAD_COUNT", "8")
	t.Setenv("FERROCP_ENABLE_ZERO_COPY", "false")
	t.Setenv("FERROCP_FEATURES_PROGRESS_INTERVAL", "250ms")
	t.Setenv("FERROCP_SELECTOR_PERFORMANCE_IMPROVEMENT_THRESHOLD", "0.25")
	t.Setenv("FERROCP_UNKNOWN_KEY", "ignored")

	if err := cfg.ApplyEnvOverrides(); err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}

	if cfg.ThreadCount != 8 {
		t.Errorf("expected thread_count=8, got %d", cfg.ThreadCount)
	}
	if cfg.EnableZeroCopy {
		t.Errorf("expected enable_zero_copy=false")
	}
	if cfg.Features.ProgressInterval != 250*time.Millisecond {
		t.Errorf("expected progress_interval=250ms, got %v", cfg.Features.ProgressInterval)
	}
	if cfg.Selector.PerformanceImprovementThresh != 0.25 {
		t.Errorf("expected threshold=0.25, got %v", cfg.Selector.PerformanceImprovementThresh)
	}
}

func TestValidateRejectsUnknownAlgorithms(t *testing.T) {
	cfg := Default()
	cfg.Features.VerificationAlgorithm = "md5"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unsupported verification algorithm")
	}

	cfg = Default()
	cfg.Compression.Algorithm = "snappy"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unsupported compression algorithm")
	}
}

func TestValidateRejectsNegativeThreadCount(t *testing.T) {
	cfg := Default()
	cfg.ThreadCount = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative thread_count")
	}
}
