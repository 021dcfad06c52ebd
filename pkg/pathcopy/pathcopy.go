// Package pathcopy implements the deploy pipeline's file selection and copy
// primitives: a non-recursive pattern enumeration of a source directory and a
// concurrent copy task that replicates the matched files into a target
// directory with unconditional overwrite.
package pathcopy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulschiretz/pgl-deploy/pkg/util"
)

// Metrics is the consumer-side interface for the counters this package
// updates. pkg/metrics provides the concrete implementations.
type Metrics interface {
	AddEntriesScanned(n int64)
	AddEntriesMatched(n int64)
	AddFilesCopied(n int64)
	AddFilesFailed(n int64)
	AddBytesWritten(n int64)
}

// Entry holds the metadata for one matched source file so workers never
// re-fetch filesystem stats.
type Entry struct {
	// Name is the base file name, reused verbatim in the target.
	Name       string
	AbsSrcPath string
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
}

// Enumerate lists the immediate children of src whose base name matches the
// glob pattern. It never descends into subdirectories, and subdirectories
// themselves are never matched. The match is case-insensitive on hosts whose
// filesystems are case-insensitive by default. An empty result is valid and
// not an error.
func Enumerate(src, pattern string, metrics Metrics) ([]Entry, error) {
	dirEntries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate source directory %s: %w", src, err)
	}

	foldCase := util.IsHostCaseInsensitiveFS()
	matchPattern := pattern
	if foldCase {
		matchPattern = strings.ToLower(pattern)
	}

	var entries []Entry
	for _, de := range dirEntries {
		metrics.AddEntriesScanned(1)

		if de.IsDir() {
			continue
		}

		name := de.Name()
		matchName := name
		if foldCase {
			matchName = strings.ToLower(name)
		}

		// Pattern validity is checked by config.Validate, so a match error
		// here means the pattern slipped in unvalidated.
		matched, err := filepath.Match(matchPattern, matchName)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if !matched {
			continue
		}

		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat source entry %s: %w", name, err)
		}

		metrics.AddEntriesMatched(1)
		entries = append(entries, Entry{
			Name:       name,
			AbsSrcPath: filepath.Join(src, name),
			Size:       info.Size(),
			Mode:       info.Mode(),
			ModTime:    info.ModTime(),
		})
	}

	return entries, nil
}

// TotalBytes sums the sizes of the given entries, for free-space preflight.
func TotalBytes(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
