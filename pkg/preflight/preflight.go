// Package preflight provides validation checks that run before the deploy
// pipeline touches the filesystem. The checks are designed so that a missing
// or inaccessible source aborts the run before the target directory is
// created, and target problems surface as friendly errors instead of letting
// os.MkdirAll or the first copy fail deep inside the worker pool.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-deploy/pkg/util"
)

// Sentinel errors for the fatal failure classes of a deploy run.
var (
	// ErrSourceNotFound indicates the source path does not exist or is not a directory.
	ErrSourceNotFound = errors.New("source not found")
	// ErrTargetCreate indicates the target directory could not be created or written.
	ErrTargetCreate = errors.New("target create failed")
)

// CheckSourceAccessible validates that the source path exists and is a
// directory. Errors wrap ErrSourceNotFound where applicable.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: source directory %s does not exist", ErrSourceNotFound, srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("%w: source path %s is not a directory", ErrSourceNotFound, srcPath)
	}

	return nil
}

// EnsureTargetWritable guarantees the target directory exists after the call,
// creating any missing parent directories, and verifies it is writable with a
// create-and-delete probe. Idempotent: an existing directory is a no-op.
func EnsureTargetWritable(targetPath string) error {
	if info, err := os.Stat(targetPath); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: target path exists but is not a directory: %s", ErrTargetCreate, targetPath)
	}

	if err := os.MkdirAll(targetPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("%w: failed to create target directory %s: %v", ErrTargetCreate, targetPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(targetPath, ".pgl-deploy-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("%w: target directory %s is not writable: %v", ErrTargetCreate, targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}

// CheckTargetFreeSpace verifies the volume holding targetPath has at least
// 'need' bytes available. The target must already exist. A zero or negative
// need is a no-op.
func CheckTargetFreeSpace(targetPath string, need int64) error {
	if need <= 0 {
		return nil
	}

	free, err := platformFreeSpace(targetPath)
	if err != nil {
		return fmt.Errorf("could not determine free space for %s: %w", targetPath, err)
	}

	if free < uint64(need) {
		return fmt.Errorf("not enough free space on %s: need %d bytes, have %d", targetPath, need, free)
	}
	return nil
}
