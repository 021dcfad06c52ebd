package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/paulschiretz/pgl-deploy/pkg/buildinfo"
	"github.com/paulschiretz/pgl-deploy/pkg/config"
	"github.com/paulschiretz/pgl-deploy/pkg/engine"
	"github.com/paulschiretz/pgl-deploy/pkg/flagparse"
	"github.com/paulschiretz/pgl-deploy/pkg/plog"
)

// init is called before main. We use it to set up a custom, more descriptive
// help message for the command-line flags.
func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (version %s):\n", buildinfo.Name, buildinfo.Version)
		fmt.Fprintf(flag.CommandLine.Output(), "Copies executable artifacts matching a pattern from a source directory into a target directory.\n\n")
		flag.PrintDefaults()
	}
}

// buildRunConfig merges defaults, environment variables and explicitly set
// flags into the final configuration for this run. Precedence, lowest to
// highest: defaults, SOURCE_DIR/TARGET_DIR, flags.
func buildRunConfig(flagMap map[string]any) (config.Config, error) {
	runConfig := config.NewDefault()
	runConfig.ApplyEnv()
	runConfig = config.MergeConfigWithFlags(runConfig, flagMap)

	if err := runConfig.Validate(); err != nil {
		return config.Config{}, err
	}
	return runConfig, nil
}

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	cliFlags := flagparse.Register(flag.CommandLine)
	flag.Parse()

	if *cliFlags.Version {
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	}

	flagMap, err := flagparse.SetFlagMap(flag.CommandLine, cliFlags)
	if err != nil {
		return err
	}

	runConfig, err := buildRunConfig(flagMap)
	if err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
	runConfig.LogSummary()

	startTime := time.Now()
	deployEngine := engine.New(runConfig, buildinfo.Version)
	err = deployEngine.ExecuteDeploy(ctx)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for interrupt signals (like Ctrl+C) in a separate goroutine.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
