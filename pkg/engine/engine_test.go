package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/pgl-deploy/pkg/config"
	"github.com/paulschiretz/pgl-deploy/pkg/preflight"
)

// newTestEngine builds an engine over the given directories with the
// completion line captured in the returned buffer.
func newTestEngine(t *testing.T, mutate func(*config.Config)) (*Engine, *bytes.Buffer, config.Config) {
	t.Helper()
	cfg := config.NewDefault()
	cfg.Source = t.TempDir()
	cfg.Target = filepath.Join(t.TempDir(), "bin")
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	e := New(cfg, "test")
	var out bytes.Buffer
	e.SetCompletionOutput(&out)
	return e, &out, cfg
}

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteDeploy(t *testing.T) {
	t.Run("Copies matching executables and reports completion", func(t *testing.T) {
		// The reference scenario: app.exe (10 bytes), readme.txt,
		// lib.exe (5 bytes); target does not exist beforehand.
		e, out, cfg := newTestEngine(t, nil)
		writeFile(t, cfg.Source, "app.exe", []byte("0123456789"))
		writeFile(t, cfg.Source, "readme.txt", []byte("docs"))
		writeFile(t, cfg.Source, "lib.exe", []byte("01234"))

		if err := e.ExecuteDeploy(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		appInfo, err := os.Stat(filepath.Join(cfg.Target, "app.exe"))
		if err != nil || appInfo.Size() != 10 {
			t.Errorf("app.exe missing or wrong size: %v, %v", appInfo, err)
		}
		libInfo, err := os.Stat(filepath.Join(cfg.Target, "lib.exe"))
		if err != nil || libInfo.Size() != 5 {
			t.Errorf("lib.exe missing or wrong size: %v, %v", libInfo, err)
		}
		if _, err := os.Stat(filepath.Join(cfg.Target, "readme.txt")); !os.IsNotExist(err) {
			t.Error("readme.txt must not be copied")
		}

		line := out.String()
		if !strings.Contains(line, cfg.Source) || !strings.Contains(line, cfg.Target) {
			t.Errorf("completion line must contain both paths, got: %q", line)
		}
		if !strings.HasPrefix(line, "Copied executables from ") {
			t.Errorf("unexpected completion line: %q", line)
		}
	})

	t.Run("Zero matches succeeds, creates target, prints completion", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, nil)
		writeFile(t, cfg.Source, "readme.txt", []byte("docs"))

		if err := e.ExecuteDeploy(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entries, err := os.ReadDir(cfg.Target)
		if err != nil {
			t.Fatalf("target was not created: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("target should be empty, found %d entries", len(entries))
		}
		if !strings.Contains(out.String(), "Copied executables from ") {
			t.Errorf("expected completion line, got: %q", out.String())
		}
	})

	t.Run("Missing source fails before target creation, no completion", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, func(c *config.Config) {
			c.Source = filepath.Join(c.Source, "missing")
		})

		err := e.ExecuteDeploy(context.Background())
		if err == nil {
			t.Fatal("expected error for missing source, got nil")
		}
		if !errors.Is(err, preflight.ErrSourceNotFound) {
			t.Errorf("expected ErrSourceNotFound, got %v", err)
		}
		if _, statErr := os.Stat(cfg.Target); !os.IsNotExist(statErr) {
			t.Error("target must not be created when the source is missing")
		}
		if out.Len() != 0 {
			t.Errorf("completion line must not be printed on failure, got: %q", out.String())
		}
	})

	t.Run("Idempotent across repeated runs", func(t *testing.T) {
		e, _, cfg := newTestEngine(t, nil)
		writeFile(t, cfg.Source, "app.exe", []byte("stable"))

		for i := 0; i < 2; i++ {
			if err := e.ExecuteDeploy(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got, err := os.ReadFile(filepath.Join(cfg.Target, "app.exe"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "stable" {
			t.Errorf("expected identical content after two runs, got %q", got)
		}
		entries, err := os.ReadDir(cfg.Target)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected exactly one file in target, found %d", len(entries))
		}
	})

	t.Run("Failed copy suppresses the completion line", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, nil)
		writeFile(t, cfg.Source, "app.exe", []byte("x"))

		// Make the target path a file so directory creation fails.
		if err := os.WriteFile(cfg.Target, []byte("in the way"), 0644); err != nil {
			t.Fatal(err)
		}

		err := e.ExecuteDeploy(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.Is(err, preflight.ErrTargetCreate) {
			t.Errorf("expected ErrTargetCreate, got %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("completion line must not be printed on failure, got: %q", out.String())
		}
	})

	t.Run("Dry run mutates nothing and marks the report", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, func(c *config.Config) {
			c.Runtime.DryRun = true
		})
		writeFile(t, cfg.Source, "app.exe", []byte("x"))

		if err := e.ExecuteDeploy(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(cfg.Target); !os.IsNotExist(err) {
			t.Error("dry run must not create the target directory")
		}
		if !strings.HasPrefix(out.String(), "[DRY RUN] Copied executables from ") {
			t.Errorf("expected dry-run marked completion line, got: %q", out.String())
		}
	})

	t.Run("Bundle mode writes a single archive", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, func(c *config.Config) {
			c.Bundle.Format = config.BundleTarGz
		})
		writeFile(t, cfg.Source, "app.exe", []byte("0123456789"))
		writeFile(t, cfg.Source, "readme.txt", []byte("docs"))

		if err := e.ExecuteDeploy(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		archive := filepath.Join(cfg.Target, "executables.tar.gz")
		if _, err := os.Stat(archive); err != nil {
			t.Errorf("expected archive at %s: %v", archive, err)
		}
		if _, err := os.Stat(filepath.Join(cfg.Target, "app.exe")); !os.IsNotExist(err) {
			t.Error("bundle mode must not write loose copies")
		}
		if !strings.Contains(out.String(), "Copied executables from ") {
			t.Errorf("expected completion line, got: %q", out.String())
		}
	})

	t.Run("Bundle mode with zero matches skips the archive but succeeds", func(t *testing.T) {
		e, out, cfg := newTestEngine(t, func(c *config.Config) {
			c.Bundle.Format = config.BundleTarZst
		})
		writeFile(t, cfg.Source, "readme.txt", []byte("docs"))

		if err := e.ExecuteDeploy(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries, err := os.ReadDir(cfg.Target)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no archive for zero matches, found %d entries", len(entries))
		}
		if !strings.Contains(out.String(), "Copied executables from ") {
			t.Errorf("expected completion line, got: %q", out.String())
		}
	})
}
