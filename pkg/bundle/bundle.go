// Package bundle writes a set of enumerated executables into a single
// compressed tar archive in the target directory, as an alternative to loose
// file copies. The archive is written to a temporary file and atomically
// renamed into place, so a crashed run never leaves a half-written archive
// under the final name.
package bundle

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/pgl-deploy/pkg/hints"
	"github.com/paulschiretz/pgl-deploy/pkg/pathcopy"
	"github.com/paulschiretz/pgl-deploy/pkg/plog"
	"github.com/paulschiretz/pgl-deploy/pkg/pool"
)

// Format selects the archive compression.
type Format string

const (
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
)

// ErrNoEntries signals that nothing matched the pattern and no archive was
// written. It is surfaced as a hint: a skipped step, not a failure.
var ErrNoEntries = errors.New("no matching executables, archive skipped")

// Metrics is the consumer-side interface for the counters this package updates.
type Metrics interface {
	AddFilesCopied(n int64)
	AddBytesWritten(n int64)
}

// Bundler archives enumerated entries into a single compressed tar file.
type Bundler struct {
	format       Format
	dryRun       bool
	ioBufferPool *pool.FixedBufferPool
	metrics      Metrics
}

// New creates a bundler for the given format.
func New(format Format, dryRun bool, ioBufferPool *pool.FixedBufferPool, metrics Metrics) *Bundler {
	return &Bundler{
		format:       format,
		dryRun:       dryRun,
		ioBufferPool: ioBufferPool,
		metrics:      metrics,
	}
}

// ArchiveName returns the archive file name for a given base name,
// e.g. "executables" -> "executables.tar.gz".
func (b *Bundler) ArchiveName(baseName string) string {
	return baseName + "." + string(b.format)
}

// Bundle writes all entries into the archive at absArchivePath. With zero
// entries it skips the write and returns ErrNoEntries wrapped as a hint.
func (b *Bundler) Bundle(ctx context.Context, entries []pathcopy.Entry, absArchivePath string) (retErr error) {
	if len(entries) == 0 {
		return hints.Wrap(ErrNoEntries)
	}

	if b.dryRun {
		plog.Notice("[DRY RUN] BUNDLE", "archive", absArchivePath, "files", len(entries))
		return nil
	}
	plog.Notice("BUNDLE", "archive", absArchivePath, "files", len(entries))

	// 1. Create the temp file next to the final path so the rename stays on
	// one filesystem and remains atomic.
	trgF, err := os.CreateTemp(filepath.Dir(absArchivePath), "pgl-deploy-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempTrgPath := trgF.Name()

	// Ensure cleanup on error.
	defer func() {
		if retErr != nil {
			trgF.Close()
			os.Remove(tempTrgPath)
		}
	}()

	// 2. Write the archive content.
	if err := b.writeArchive(ctx, entries, trgF); err != nil {
		return err
	}

	// 3. Close explicitly before the rename.
	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}

	// 4. Atomic rename.
	if err := os.Rename(tempTrgPath, absArchivePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

// writeArchive streams every entry through tar and the configured compressor
// into w.
func (b *Bundler) writeArchive(ctx context.Context, entries []pathcopy.Entry, w io.Writer) (retErr error) {
	cw := &countingWriter{w: w, metrics: b.metrics}
	bufWriter := bufio.NewWriterSize(cw, b.ioBufferPool.Size())

	var compressedWriter io.WriteCloser
	switch b.format {
	case TarZst:
		zstdWriter, err := zstd.NewWriter(bufWriter)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	case TarGz:
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	default:
		return fmt.Errorf("unsupported bundle format %q", b.format)
	}

	tarWriter := tar.NewWriter(compressedWriter)

	// Close order matters: tar trailer, then compressor frame, then the
	// buffered writer flush.
	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	bufPtr := b.ioBufferPool.Get()
	defer b.ioBufferPool.Put(bufPtr)

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := b.writeEntry(tarWriter, entry, *bufPtr); err != nil {
			return err
		}
		b.metrics.AddFilesCopied(1)
	}
	return nil
}

// writeEntry appends one source file to the tar stream.
func (b *Bundler) writeEntry(tw *tar.Writer, entry pathcopy.Entry, buf []byte) error {
	plog.Notice("ADD", "file", entry.Name)

	in, err := os.Open(entry.AbsSrcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", entry.AbsSrcPath, err)
	}
	defer in.Close()

	header := &tar.Header{
		Name:    entry.Name,
		Mode:    int64(entry.Mode.Perm()),
		Size:    entry.Size,
		ModTime: entry.ModTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", entry.Name, err)
	}

	if _, err := io.CopyBuffer(tw, in, buf); err != nil {
		return fmt.Errorf("failed to archive %s: %w", entry.Name, err)
	}
	return nil
}

// countingWriter wraps an io.Writer and updates metrics on every write.
type countingWriter struct {
	w       io.Writer
	metrics Metrics
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if n > 0 {
		cw.metrics.AddBytesWritten(int64(n))
	}
	return
}
