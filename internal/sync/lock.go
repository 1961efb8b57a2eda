package sync

import (
	"fmt"
	"os"
	"time"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/common"
)

// staleLockAfter is how old an abandoned lock file may be before a new run
// reclaims it. Runs are bounded by the budget, so anything this old is a
// crashed invocation.
const staleLockAfter = 30 * time.Minute

const lockRetryInterval = 100 * time.Millisecond

// FileLock is the advisory cross-invocation lock guarding checkpoint state
// and the workbook. It is held for an entire scan and must be released on
// all exit paths.
type FileLock struct {
	path string
}

// AcquireLock attempts to take the lock at path, waiting up to wait.
// Failure yields common.ErrLocked without touching any other state.
func AcquireLock(path string, wait time.Duration) (*FileLock, error) {
	deadline := time.Now().Add(wait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			_ = f.Close()
			return &FileLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAfter {
			reclaimStaleLock(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, common.ErrLocked
		}
		time.Sleep(lockRetryInterval)
	}
}

// reclaimStaleLock retires an abandoned lock file. The rename is atomic, so
// when several waiters observe the same stale file only one of them moves it
// aside; the losers fall back to the O_EXCL create. The moved file's age is
// re-checked before deletion: if a new holder replaced the lock between the
// caller's stat and the rename, the live lock is put back instead of being
// destroyed.
func reclaimStaleLock(path string) {
	// Re-verify right before the rename; another waiter may have already
	// reclaimed and re-created the lock since the caller's stat.
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) <= staleLockAfter {
		return
	}
	stalePath := path + ".stale"
	if err := os.Rename(path, stalePath); err != nil {
		return
	}
	if info, err := os.Stat(stalePath); err == nil && time.Since(info.ModTime()) <= staleLockAfter {
		_ = os.Rename(stalePath, path)
		return
	}
	_ = os.Remove(stalePath)
}

// Release removes the lock file.
func (l *FileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
