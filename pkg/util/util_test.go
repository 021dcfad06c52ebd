package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWithUserWritePermission(t *testing.T) {
	tests := []struct {
		name string
		in   os.FileMode
		want os.FileMode
	}{
		{"Read-only file gains write bit", 0444, 0644},
		{"Writable file unchanged", 0644, 0644},
		{"Executable keeps exec bits", 0555, 0755},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithUserWritePermission(tt.in); got != tt.want {
				t.Errorf("WithUserWritePermission(%o) = %o, want %o", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	t.Run("Tilde prefix expands to home", func(t *testing.T) {
		got, err := ExpandPath("~/deploy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := filepath.Join(home, "deploy")
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Absolute path returned as-is", func(t *testing.T) {
		in := filepath.Join(string(filepath.Separator), "opt", "deploy")
		got, err := ExpandPath(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != in {
			t.Errorf("got %q, want %q", got, in)
		}
	})
}

func TestSamePath(t *testing.T) {
	if !SamePath("/a/b/../b", "/a/b") {
		t.Error("expected cleaned paths to compare equal")
	}
	if SamePath("/a/b", "/a/c") {
		t.Error("expected distinct paths to compare unequal")
	}

	caseFolded := SamePath("/a/B", "/a/b")
	wantFolded := runtime.GOOS == "windows" || runtime.GOOS == "darwin"
	if caseFolded != wantFolded {
		t.Errorf("case folding behavior = %v, want %v on %s", caseFolded, wantFolded, runtime.GOOS)
	}
}
