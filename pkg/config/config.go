package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-deploy/pkg/buildinfo"
	"github.com/paulschiretz/pgl-deploy/pkg/plog"
	"github.com/paulschiretz/pgl-deploy/pkg/util"
)

// Environment variables consulted when the corresponding flags are not set.
const (
	EnvSourceDir = "SOURCE_DIR"
	EnvTargetDir = "TARGET_DIR"
)

// BundleFormat selects how matched executables are written to the target.
type BundleFormat string

const (
	// BundleNone deploys executables as loose files (the default).
	BundleNone BundleFormat = "none"
	// BundleTarGz writes all matched executables into a single .tar.gz archive.
	BundleTarGz BundleFormat = "tar.gz"
	// BundleTarZst writes all matched executables into a single .tar.zst archive.
	BundleTarZst BundleFormat = "tar.zst"
)

// BundleFormatFromString parses a user-supplied bundle format name.
func BundleFormatFromString(s string) (BundleFormat, error) {
	switch BundleFormat(s) {
	case BundleNone, BundleTarGz, BundleTarZst:
		return BundleFormat(s), nil
	default:
		return BundleNone, fmt.Errorf("invalid bundle format %q: must be 'none', 'tar.gz' or 'tar.zst'", s)
	}
}

// PerformanceConfig groups the tuning knobs for the copy pipeline.
type PerformanceConfig struct {
	// CopyWorkers is the number of goroutines copying files concurrently.
	CopyWorkers int
	// RetryCount is the number of retries for a failed file copy. The
	// default is 0: a failed copy is surfaced immediately.
	RetryCount int
	// RetryWaitSeconds is the wait between retries.
	RetryWaitSeconds int
	// BufferSizeKB is the size of the I/O buffer in kilobytes for file
	// copies and compression.
	BufferSizeKB int
}

// BundleConfig groups the optional archive output policy.
type BundleConfig struct {
	Format BundleFormat
	// Name is the archive file name without extension.
	Name string
}

// RuntimeConfig holds per-run switches that are never persisted.
type RuntimeConfig struct {
	DryRun bool
}

// Config is the complete configuration for a deploy run. Source and Target
// are always injected via flags or environment, never baked-in constants,
// so the pipeline is testable against arbitrary temporary directories.
type Config struct {
	Version  string
	Source   string
	Target   string
	Pattern  string
	LogLevel string
	// FailFast aborts the entire run on the first copy failure. Enabled by
	// default; disabling it collects per-file errors and continues.
	FailFast    bool
	Metrics     bool
	Runtime     RuntimeConfig
	Performance PerformanceConfig
	Bundle      BundleConfig
}

// NewDefault creates and returns a Config struct with sensible default values.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		Source:   "",      // Intentionally empty to force user configuration.
		Target:   "",      // Intentionally empty to force user configuration.
		Pattern:  "*.exe", // Executable artifacts.
		LogLevel: "info",
		FailFast: true, // Abort the whole run on the first copy failure.
		Metrics:  true,
		Runtime: RuntimeConfig{
			DryRun: false,
		},
		Performance: PerformanceConfig{
			CopyWorkers:      4, // Safe for HDDs (prevents thrashing), decent for SSDs.
			RetryCount:       0, // Fail immediately; retries are opt-in.
			RetryWaitSeconds: 5,
			BufferSizeKB:     256, // Keep it between 64KB-4MB.
		},
		Bundle: BundleConfig{
			Format: BundleNone,
			Name:   "executables",
		},
	}
}

// ApplyEnv overlays SOURCE_DIR and TARGET_DIR onto the config for any path
// that is still unset. Flags always win over the environment because they
// are merged afterwards.
func (c *Config) ApplyEnv() {
	if c.Source == "" {
		c.Source = os.Getenv(EnvSourceDir)
	}
	if c.Target == "" {
		c.Target = os.Getenv(EnvTargetDir)
	}
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. It iterates over the setFlags map, which contains only the flags
// explicitly provided by the user on the command line.
func MergeConfigWithFlags(base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "source":
			merged.Source = value.(string)
		case "target":
			merged.Target = value.(string)
		case "pattern":
			merged.Pattern = value.(string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "fail-fast":
			merged.FailFast = value.(bool)
		case "metrics":
			merged.Metrics = value.(bool)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "copy-workers":
			merged.Performance.CopyWorkers = value.(int)
		case "retry-count":
			merged.Performance.RetryCount = value.(int)
		case "retry-wait":
			merged.Performance.RetryWaitSeconds = value.(int)
		case "buffer-size-kb":
			merged.Performance.BufferSizeKB = value.(int)
		case "bundle-format":
			merged.Bundle.Format = value.(BundleFormat)
		case "bundle-name":
			merged.Bundle.Name = value.(string)
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}

// Validate checks the configuration for logical errors and inconsistencies.
// It cleans and expands both paths as a side effect so downstream code works
// with canonical representations.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source path cannot be empty (use -source or %s)", EnvSourceDir)
	}
	if c.Target == "" {
		return fmt.Errorf("target path cannot be empty (use -target or %s)", EnvTargetDir)
	}

	var err error
	c.Source, err = util.ExpandPath(c.Source)
	if err != nil {
		return fmt.Errorf("could not expand source path: %w", err)
	}
	c.Source = filepath.Clean(c.Source)

	c.Target, err = util.ExpandPath(c.Target)
	if err != nil {
		return fmt.Errorf("could not expand target path: %w", err)
	}
	c.Target = filepath.Clean(c.Target)

	if util.SamePath(c.Source, c.Target) {
		return fmt.Errorf("source and target cannot be the same directory: %s", c.Source)
	}

	if c.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if _, err := filepath.Match(c.Pattern, ""); err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", c.Pattern, err)
	}

	if c.Performance.CopyWorkers < 1 {
		return fmt.Errorf("performance.copyWorkers must be at least 1")
	}
	if c.Performance.RetryCount < 0 {
		return fmt.Errorf("performance.retryCount cannot be negative")
	}
	if c.Performance.RetryWaitSeconds < 0 {
		return fmt.Errorf("performance.retryWaitSeconds cannot be negative")
	}
	if c.Performance.BufferSizeKB <= 0 {
		return fmt.Errorf("performance.bufferSizeKB must be greater than 0")
	}

	if _, err := BundleFormatFromString(string(c.Bundle.Format)); err != nil {
		return err
	}
	if c.Bundle.Format != BundleNone && c.Bundle.Name == "" {
		return fmt.Errorf("bundle.name cannot be empty when bundling is enabled")
	}
	return nil
}

// LogSummary prints a user-friendly summary of the configuration.
func (c *Config) LogSummary() {
	logArgs := []any{
		"log_level", c.LogLevel,
		"source", c.Source,
		"target", c.Target,
		"pattern", c.Pattern,
		"dry_run", c.Runtime.DryRun,
		"fail_fast", c.FailFast,
		"metrics", c.Metrics,
		"copy_workers", c.Performance.CopyWorkers,
		"buffer_size_kb", c.Performance.BufferSizeKB,
	}
	if c.Performance.RetryCount > 0 {
		logArgs = append(logArgs, "retries", fmt.Sprintf("%d (wait %ds)", c.Performance.RetryCount, c.Performance.RetryWaitSeconds))
	}
	if c.Bundle.Format != BundleNone {
		logArgs = append(logArgs, "bundle", fmt.Sprintf("%s.%s", c.Bundle.Name, c.Bundle.Format))
	}
	plog.Info("Configuration loaded", logArgs...)
}
