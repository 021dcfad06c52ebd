package pathcopy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-deploy/pkg/plog"
	"github.com/paulschiretz/pgl-deploy/pkg/pool"
	"github.com/paulschiretz/pgl-deploy/pkg/util"
)

// ErrCopyFailed wraps every per-file copy failure so callers can classify
// the failure without parsing messages.
var ErrCopyFailed = errors.New("copy failed")

// Task copies a fixed set of enumerated entries into a target directory
// using a bounded worker pool. The target directory must exist before Run is
// called; directory creation happens-before any copy, so workers need no
// locking — every copy addresses a distinct destination file name.
type Task struct {
	trg      string
	entries  []Entry
	dryRun   bool
	failFast bool

	retryCount int
	retryWait  time.Duration

	ioBufferPool *pool.FixedBufferPool
	numWorkers   int

	metrics Metrics

	// collectMu guards collected per-file errors when failFast is disabled.
	collectMu sync.Mutex
	collected []error
}

// NewTask creates a copy task for the given entries.
func NewTask(
	trg string,
	entries []Entry,
	dryRun, failFast bool,
	retryCount int,
	retryWait time.Duration,
	ioBufferPool *pool.FixedBufferPool,
	numWorkers int,
	metrics Metrics,
) *Task {
	return &Task{
		trg:          trg,
		entries:      entries,
		dryRun:       dryRun,
		failFast:     failFast,
		retryCount:   retryCount,
		retryWait:    retryWait,
		ioBufferPool: ioBufferPool,
		numWorkers:   numWorkers,
		metrics:      metrics,
	}
}

// Run executes all copies. In fail-fast mode the first error cancels the
// pool and is returned; otherwise all failures are collected and returned
// joined after every entry has been attempted. A nil return means every
// entry was copied (or would have been, in dry-run mode).
func (t *Task) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.numWorkers)

	for _, entry := range t.entries {
		entry := entry
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := t.copyEntry(entry)
			if err == nil {
				return nil
			}

			t.metrics.AddFilesFailed(1)
			err = fmt.Errorf("%w: %s: %v", ErrCopyFailed, entry.Name, err)
			if t.failFast {
				return err
			}

			plog.Error("Copy failed, continuing", "file", entry.Name, "error", err)
			t.collectMu.Lock()
			t.collected = append(t.collected, err)
			t.collectMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(t.collected...)
}

// copyEntry copies a single entry into the target directory, overwriting any
// existing file of the same name, with a bounded retry loop.
func (t *Task) copyEntry(entry Entry) error {
	absTrgPath := filepath.Join(t.trg, entry.Name)

	if t.dryRun {
		plog.Notice("[DRY RUN] COPY", "file", entry.Name, "target", absTrgPath)
		return nil
	}
	plog.Notice("COPY", "file", entry.Name, "target", absTrgPath)

	var lastErr error
	for i := 0; i < t.retryCount+1; i++ {
		if i > 0 {
			plog.Warn("Retrying file copy", "file", entry.AbsSrcPath, "attempt", fmt.Sprintf("%d/%d", i, t.retryCount), "after", t.retryWait)
			time.Sleep(t.retryWait)
		}

		lastErr = t.copyFile(entry, absTrgPath)
		if lastErr == nil {
			t.metrics.AddFilesCopied(1)
			return nil
		}
	}

	if t.retryCount > 0 {
		return fmt.Errorf("failed to copy file from '%s' to '%s' after %d attempts: %w", entry.AbsSrcPath, absTrgPath, t.retryCount+1, lastErr)
	}
	return lastErr
}

// copyFile performs one copy attempt. The destination is opened with
// O_TRUNC, which implements the unconditional-overwrite contract, and the
// source's permission bits are preserved with the owner-write bit forced so
// the next deploy can overwrite the file again.
func (t *Task) copyFile(entry Entry, absTrgPath string) error {
	in, err := os.Open(entry.AbsSrcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", entry.AbsSrcPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(absTrgPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.WithUserWritePermission(entry.Mode))
	if err != nil {
		return fmt.Errorf("failed to open destination file %s: %w", absTrgPath, err)
	}
	defer out.Close() // Ensure closed on error.

	// Explicitly set permissions to ensure they match source even if the
	// file already existed with different bits.
	if err := out.Chmod(util.WithUserWritePermission(entry.Mode)); err != nil {
		return fmt.Errorf("failed to set permissions on destination file %s: %w", absTrgPath, err)
	}

	// Pre-allocate file size to reduce fragmentation.
	if entry.Size > 0 {
		_ = out.Truncate(entry.Size)
	}

	bufPtr := t.ioBufferPool.Get()
	defer t.ioBufferPool.Put(bufPtr)
	buf := *bufPtr
	// Always reset len to cap before use, strictly for io.Copy purposes.
	buf = buf[:cap(buf)]

	bytesWritten, err := io.CopyBuffer(out, in, buf)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", entry.AbsSrcPath, absTrgPath, err)
	}
	t.metrics.AddBytesWritten(bytesWritten)

	// Close to flush data before setting timestamps; closing may update the
	// modification time.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file %s: %w", absTrgPath, err)
	}

	if err := os.Chtimes(absTrgPath, entry.ModTime, entry.ModTime); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", absTrgPath, err)
	}
	return nil
}
