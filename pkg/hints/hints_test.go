package hints

import (
	"errors"
	"fmt"
	"testing"
)

func TestHints(t *testing.T) {
	sentinel := errors.New("nothing to do")

	t.Run("New creates a hint", func(t *testing.T) {
		err := New("archive skipped")
		if !IsHint(err) {
			t.Error("expected New error to be a hint")
		}
		if err.Error() != "archive skipped" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	})

	t.Run("Wrap promotes an error to a hint", func(t *testing.T) {
		err := Wrap(sentinel)
		if !IsHint(err) {
			t.Error("expected wrapped error to be a hint")
		}
		if !errors.Is(err, sentinel) {
			t.Error("expected wrapped hint to match sentinel via errors.Is")
		}
	})

	t.Run("Wrap nil returns nil", func(t *testing.T) {
		if Wrap(nil) != nil {
			t.Error("expected Wrap(nil) to return nil")
		}
	})

	t.Run("Hint survives further wrapping", func(t *testing.T) {
		err := fmt.Errorf("deploy step: %w", Wrap(sentinel))
		if !IsHint(err) {
			t.Error("expected hint to be detectable through fmt.Errorf wrapping")
		}
		if !Is(err, sentinel) {
			t.Error("expected Is to match hint and sentinel")
		}
	})

	t.Run("Plain errors are not hints", func(t *testing.T) {
		if IsHint(sentinel) {
			t.Error("plain error must not be a hint")
		}
		if Is(sentinel, sentinel) {
			t.Error("Is must require hint behavior, not just errors.Is")
		}
	})
}
