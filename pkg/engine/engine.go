// Package engine orchestrates a deploy run from start to finish. The steps
// execute strictly in sequence — source preflight, target creation,
// enumeration, copy or bundle, completion report — and the driver
// short-circuits on the first failing step, so the completion line is never
// printed for a run that did not fully succeed.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/paulschiretz/pgl-deploy/pkg/bundle"
	"github.com/paulschiretz/pgl-deploy/pkg/config"
	"github.com/paulschiretz/pgl-deploy/pkg/hints"
	"github.com/paulschiretz/pgl-deploy/pkg/metrics"
	"github.com/paulschiretz/pgl-deploy/pkg/pathcopy"
	"github.com/paulschiretz/pgl-deploy/pkg/plog"
	"github.com/paulschiretz/pgl-deploy/pkg/pool"
	"github.com/paulschiretz/pgl-deploy/pkg/preflight"
)

// Engine runs the deploy pipeline for one configuration.
type Engine struct {
	config  config.Config
	version string
	metrics metrics.Metrics

	// completionOut receives the single success line. It is os.Stdout in
	// production and a buffer in tests.
	completionOut io.Writer
}

// New creates a deploy engine with the given configuration and version.
func New(cfg config.Config, version string) *Engine {
	var m metrics.Metrics = &metrics.NoopMetrics{}
	if cfg.Metrics {
		m = &metrics.DeployMetrics{}
	}
	return &Engine{
		config:        cfg,
		version:       version,
		metrics:       m,
		completionOut: os.Stdout,
	}
}

// SetCompletionOutput redirects the completion line, primarily for testing.
func (e *Engine) SetCompletionOutput(w io.Writer) {
	e.completionOut = w
}

// ExecuteDeploy runs the entire deploy job from start to finish.
func (e *Engine) ExecuteDeploy(ctx context.Context) error {
	cfg := e.config

	if cfg.Runtime.DryRun {
		plog.Info("Starting deploy (DRY RUN)", "source", cfg.Source, "target", cfg.Target, "pattern", cfg.Pattern)
	} else {
		plog.Info("Starting deploy", "source", cfg.Source, "target", cfg.Target, "pattern", cfg.Pattern)
	}

	// --- 1. Source preflight ---
	// Runs before the target is touched: a missing source must abort the run
	// without creating the target directory.
	if err := preflight.CheckSourceAccessible(cfg.Source); err != nil {
		return err
	}

	// --- 2. Ensure the target directory ---
	if cfg.Runtime.DryRun {
		plog.Info("[DRY RUN] Would ensure target directory", "target", cfg.Target)
	} else if err := preflight.EnsureTargetWritable(cfg.Target); err != nil {
		return err
	}

	// --- 3. Enumerate matching executables ---
	entries, err := pathcopy.Enumerate(cfg.Source, cfg.Pattern, e.metrics)
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}
	plog.Info("Enumerated source", "matched", len(entries), "bytes", pathcopy.TotalBytes(entries))

	// --- 4. Free-space preflight ---
	if !cfg.Runtime.DryRun {
		if err := preflight.CheckTargetFreeSpace(cfg.Target, pathcopy.TotalBytes(entries)); err != nil {
			return err
		}
	}

	// --- 5. Copy or bundle ---
	ioBufferPool := pool.NewFixedBuffer(int64(cfg.Performance.BufferSizeKB) * 1024)
	if cfg.Bundle.Format != config.BundleNone {
		if err := e.performBundle(ctx, entries, ioBufferPool); err != nil {
			return err
		}
	} else {
		if err := e.performCopy(ctx, entries, ioBufferPool); err != nil {
			return err
		}
	}

	// --- 6. Report ---
	if cfg.Metrics {
		e.metrics.Log()
	}
	return e.reportCompletion()
}

// performCopy copies every entry into the target via the worker pool. The
// target directory already exists at this point, which orders directory
// creation before all copies.
func (e *Engine) performCopy(ctx context.Context, entries []pathcopy.Entry, ioBufferPool *pool.FixedBufferPool) error {
	task := pathcopy.NewTask(
		e.config.Target,
		entries,
		e.config.Runtime.DryRun,
		e.config.FailFast,
		e.config.Performance.RetryCount,
		time.Duration(e.config.Performance.RetryWaitSeconds)*time.Second,
		ioBufferPool,
		e.config.Performance.CopyWorkers,
		e.metrics,
	)
	if err := task.Run(ctx); err != nil {
		return fmt.Errorf("deploy copy failed: %w", err)
	}
	return nil
}

// performBundle writes all entries into a single archive in the target. A
// zero-match run surfaces as a hint and is logged, not failed.
func (e *Engine) performBundle(ctx context.Context, entries []pathcopy.Entry, ioBufferPool *pool.FixedBufferPool) error {
	b := bundle.New(
		bundle.Format(e.config.Bundle.Format),
		e.config.Runtime.DryRun,
		ioBufferPool,
		e.metrics,
	)
	archivePath := filepath.Join(e.config.Target, b.ArchiveName(e.config.Bundle.Name))

	err := b.Bundle(ctx, entries, archivePath)
	if hints.IsHint(err) {
		plog.Info("Bundle skipped", "reason", err.Error())
		return nil
	}
	if err != nil {
		return fmt.Errorf("deploy bundle failed: %w", err)
	}
	return nil
}

// reportCompletion emits the single human-readable success line containing
// both paths verbatim. It is only reached when every prior step succeeded.
func (e *Engine) reportCompletion() error {
	line := fmt.Sprintf("Copied executables from %s to %s", e.config.Source, e.config.Target)
	if e.config.Runtime.DryRun {
		line = "[DRY RUN] " + line
	}
	if _, err := fmt.Fprintln(e.completionOut, line); err != nil {
		return fmt.Errorf("failed to write completion message: %w", err)
	}
	return nil
}
