// Package filelock serializes read-modify-write cycles on file-mode state
// across processes. `loresync serve` and a one-shot `loresync sync` may share
// one data directory, so an in-process mutex alone would lose updates.
package filelock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 25 * time.Millisecond

// Exclusive blocks until it holds the write lock at path, or ctx ends. The
// parent directory is created when missing. Call the returned func to unlock.
func Exclusive(ctx context.Context, path string) (func(), error) {
	return acquire(ctx, path, false)
}

// Shared blocks until it holds a read lock at path, or ctx ends.
func Shared(ctx context.Context, path string) (func(), error) {
	return acquire(ctx, path, true)
}

func acquire(ctx context.Context, path string, shared bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	tryLock := fl.TryLockContext
	if shared {
		tryLock = fl.TryRLockContext
	}

	locked, err := tryLock(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", path)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release file lock", "path", path, "error", err)
		}
	}, nil
}
