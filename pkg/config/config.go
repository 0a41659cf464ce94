// Package config defines the copy core's own configuration surface
// (spec.md §6.4): a YAML-loadable document plus FERROCP_-prefixed
// environment variable overrides. Hot-reload and file watching belong to
// the external configuration collaborator and are not implemented here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// NotCompressedMarker is the sentinel leading byte the external
// compression collaborator writes for "not compressed" streams. The copy
// core never compresses bytes itself but preserves the constant so tools
// built against this module stay wire-compatible with that format.
const NotCompressedMarker byte = 255

// Configuration is the complete set of tunables spec.md §6.4 names.
type Configuration struct {
	BufferSize           int64              `yaml:"buffer_size"`
	ThreadCount          int                `yaml:"thread_count"`
	EnableZeroCopy       bool               `yaml:"enable_zero_copy"`
	EnableMemoryMapping  bool               `yaml:"enable_memory_mapping"`
	MemoryMappingThresh  int64              `yaml:"memory_mapping_threshold"`
	Compression          CompressionConfig  `yaml:"compression"`
	Features             FeatureConfig      `yaml:"features"`
	Resume               ResumeConfig       `yaml:"resume"`
	Selector             SelectorConfig     `yaml:"selector"`
}

// CompressionConfig configures the external compression collaborator's
// algorithm selection (the copy core itself never compresses).
type CompressionConfig struct {
	Algorithm string `yaml:"algorithm"` // none|zstd|lz4|brotli
	Level     int    `yaml:"level"`
}

// FeatureConfig toggles optional behaviors of the copy core.
type FeatureConfig struct {
	EnableVerification     bool          `yaml:"enable_verification"`
	VerificationAlgorithm  string        `yaml:"verification_algorithm"` // blake3|sha256|none
	EnableProgressReporting bool         `yaml:"enable_progress_reporting"`
	ProgressInterval       time.Duration `yaml:"progress_interval"`
}

// ResumeConfig configures the resume store (C8).
type ResumeConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	MaxResumeAge time.Duration `yaml:"max_resume_age"`
	ResumeDir    string        `yaml:"resume_dir"`
}

// SelectorConfig configures the engine selector's dynamic thresholds (C5).
type SelectorConfig struct {
	EnableDynamicThresholds      bool    `yaml:"enable_dynamic_thresholds"`
	MinSamplesForAdjustment      int     `yaml:"min_samples_for_adjustment"`
	PerformanceImprovementThresh float64 `yaml:"performance_improvement_threshold"`
}

// Default returns the configuration with the defaults named throughout
// spec.md (micro/parallel thresholds live in their owning packages; these
// are the cross-cutting defaults owned by the config surface itself).
func Default() *Configuration {
	return &Configuration{
		BufferSize:          0, // 0 = device-derived default
		ThreadCount:         0, // 0 = auto-detect CPU count
		EnableZeroCopy:      true,
		EnableMemoryMapping: false,
		MemoryMappingThresh: 64 * 1024 * 1024,
		Compression: CompressionConfig{
			Algorithm: "none",
			Level:     0,
		},
		Features: FeatureConfig{
			EnableVerification:      false,
			VerificationAlgorithm:   "none",
			EnableProgressReporting: true,
			ProgressInterval:        100 * time.Millisecond,
		},
		Resume: ResumeConfig{
			MaxRetries:   3,
			MaxResumeAge: 24 * time.Hour,
			ResumeDir:    ".ferrocp_resume",
		},
		Selector: SelectorConfig{
			EnableDynamicThresholds:      true,
			MinSamplesForAdjustment:      50,
			PerformanceImprovementThresh: 0.10,
		},
	}
}

// Load reads a YAML configuration document from path, applying it on top
// of Default().
func Load(path string) (*Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides scans the process environment for FERROCP_-prefixed
// variables and overlays them onto cfg. Unknown variables are ignored.
func (c *Configuration) ApplyEnvOverrides() error {
	const prefix = "FERROCP_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		if err := c.setByKey(key, parts[1]); err != nil {
			return fmt.Errorf("config: env override %s: %w", parts[0], err)
		}
	}
	return nil
}

func (c *Configuration) setByKey(key, value string) error {
	switch key {
	case "buffer_size":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		c.BufferSize = v
	case "thread_count":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.ThreadCount = v
	case "enable_zero_copy":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.EnableZeroCopy = v
	case "enable_memory_mapping":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.EnableMemoryMapping = v
	case "memory_mapping_threshold":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		c.MemoryMappingThresh = v
	case "compression_algorithm":
		c.Compression.Algorithm = value
	case "compression_level":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Compression.Level = v
	case "features_enable_verification":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Features.EnableVerification = v
	case "features_verification_algorithm":
		c.Features.VerificationAlgorithm = value
	case "features_enable_progress_reporting":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Features.EnableProgressReporting = v
	case "features_progress_interval":
		v, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Features.ProgressInterval = v
	case "resume_max_retries":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Resume.MaxRetries = v
	case "resume_max_resume_age":
		v, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Resume.MaxResumeAge = v
	case "resume_resume_dir":
		c.Resume.ResumeDir = value
	case "selector_enable_dynamic_thresholds":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.Selector.EnableDynamicThresholds = v
	case "selector_min_samples_for_adjustment":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Selector.MinSamplesForAdjustment = v
	case "selector_performance_improvement_threshold":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.Selector.PerformanceImprovementThresh = v
	}
	// Unrecognized FERROCP_ keys are ignored rather than rejected, since the
	// prefix is shared with collaborator processes (CLI, sync engine) that
	// define their own options.
	return nil
}

// Validate checks the configuration for internally-consistent values.
func (c *Configuration) Validate() error {
	if c.ThreadCount < 0 {
		return fmt.Errorf("config: thread_count must be >= 0, got %d", c.ThreadCount)
	}
	if c.Resume.MaxRetries < 0 {
		return fmt.Errorf("config: resume.max_retries must be >= 0, got %d", c.Resume.MaxRetries)
	}
	switch c.Features.VerificationAlgorithm {
	case "blake3", "sha256", "none":
	default:
		return fmt.Errorf("config: features.verification_algorithm %q not recognized", c.Features.VerificationAlgorithm)
	}
	switch c.Compression.Algorithm {
	case "none", "zstd", "lz4", "brotli":
	default:
		return fmt.Errorf("config: compression.algorithm %q not recognized", c.Compression.Algorithm)
	}
	return nil
}
