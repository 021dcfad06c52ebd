package main

import (
	"testing"

	"github.com/paulschiretz/pgl-deploy/pkg/config"
)

func TestBuildRunConfig(t *testing.T) {
	t.Run("Flags win over environment", func(t *testing.T) {
		envSrc := t.TempDir()
		flagSrc := t.TempDir()
		trg := t.TempDir() + "/bin"
		t.Setenv(config.EnvSourceDir, envSrc)
		t.Setenv(config.EnvTargetDir, trg)

		cfg, err := buildRunConfig(map[string]any{"source": flagSrc})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Source != flagSrc {
			t.Errorf("expected flag source %q, got %q", flagSrc, cfg.Source)
		}
		if cfg.Target != trg {
			t.Errorf("expected env target %q, got %q", trg, cfg.Target)
		}
	})

	t.Run("Environment alone is sufficient", func(t *testing.T) {
		t.Setenv(config.EnvSourceDir, t.TempDir())
		t.Setenv(config.EnvTargetDir, t.TempDir()+"/bin")

		cfg, err := buildRunConfig(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Pattern != "*.exe" {
			t.Errorf("expected default pattern, got %q", cfg.Pattern)
		}
	})

	t.Run("Missing paths fail validation", func(t *testing.T) {
		t.Setenv(config.EnvSourceDir, "")
		t.Setenv(config.EnvTargetDir, "")

		if _, err := buildRunConfig(nil); err == nil {
			t.Error("expected validation error without paths, got nil")
		}
	})
}
