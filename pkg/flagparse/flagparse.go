// Package flagparse owns the definition of the command-line surface and the
// extraction of explicitly set flags into a merge map for the config layer.
package flagparse

import (
	"flag"

	"github.com/paulschiretz/pgl-deploy/pkg/config"
)

// CLIFlags holds pointers to all command-line flags.
// Fields are pointers so the caller can distinguish between "registered but
// not set by the user" and read the parsed value after fs.Parse.
type CLIFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool
	Metrics  *bool
	Version  *bool

	// Deploy
	Source       *string
	Target       *string
	Pattern      *string
	FailFast     *bool
	CopyWorkers  *int
	RetryCount   *int
	RetryWait    *int
	BufferSizeKB *int
	BundleFormat *string
	BundleName   *string
}

// Register defines all flags on the given FlagSet and returns the holder.
// Defaults mirror config.NewDefault so the help output is truthful; the
// merge map only carries flags the user actually set.
func Register(fs *flag.FlagSet) *CLIFlags {
	f := &CLIFlags{}

	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Metrics = fs.Bool("metrics", true, "Enable file-counting and throughput metrics.")
	f.Version = fs.Bool("version", false, "Print the application version and exit.")

	f.Source = fs.String("source", "", "Source directory to copy executables from. Falls back to SOURCE_DIR. (Required)")
	f.Target = fs.String("target", "", "Target directory to copy executables to. Falls back to TARGET_DIR. (Required)")
	f.Pattern = fs.String("pattern", "*.exe", "Glob pattern selecting which immediate children of the source qualify.")
	f.FailFast = fs.Bool("fail-fast", true, "Stop the deploy immediately on the first copy error. Set to false to collect per-file errors and continue.")
	f.CopyWorkers = fs.Int("copy-workers", 4, "Number of worker goroutines for file copies.")
	f.RetryCount = fs.Int("retry-count", 0, "Number of retries for failed file copies.")
	f.RetryWait = fs.Int("retry-wait", 5, "Seconds to wait between retries.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 256, "Size of the I/O buffer in kilobytes for file copies and compression.")
	f.BundleFormat = fs.String("bundle-format", "none", "Write matched executables into a single archive instead of loose copies: 'none', 'tar.gz' or 'tar.zst'.")
	f.BundleName = fs.String("bundle-name", "executables", "Archive file name without extension (only with -bundle-format).")

	return f
}

// SetFlagMap returns a map of the flags that were explicitly set by the user,
// along with their values. The map is used to selectively override the base
// configuration. Flags needing parsing are validated here.
func SetFlagMap(fs *flag.FlagSet, f *CLIFlags) (map[string]any, error) {
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed := func(name string, value any) {
		if usedFlags[name] {
			flagMap[name] = value
		}
	}

	addIfUsed("log-level", *f.LogLevel)
	addIfUsed("dry-run", *f.DryRun)
	addIfUsed("metrics", *f.Metrics)
	addIfUsed("source", *f.Source)
	addIfUsed("target", *f.Target)
	addIfUsed("pattern", *f.Pattern)
	addIfUsed("fail-fast", *f.FailFast)
	addIfUsed("copy-workers", *f.CopyWorkers)
	addIfUsed("retry-count", *f.RetryCount)
	addIfUsed("retry-wait", *f.RetryWait)
	addIfUsed("buffer-size-kb", *f.BufferSizeKB)
	addIfUsed("bundle-name", *f.BundleName)

	if usedFlags["bundle-format"] {
		format, err := config.BundleFormatFromString(*f.BundleFormat)
		if err != nil {
			return nil, err
		}
		flagMap["bundle-format"] = format
	}

	return flagMap, nil
}
