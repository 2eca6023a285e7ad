// Package fsutil holds the filesystem helpers the binaries share: a
// single-instance lock and atomic file replacement.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("lock held by another process")

// InstanceLock is an exclusive advisory lock on a file. One decision core
// drives one actuator, so cmd/fcw takes this lock before opening devices.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock at path without blocking. The parent directory
// is created if needed.
func AcquireLock(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &InstanceLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string { return l.fl.Path() }

// Release drops the lock. The lock file is left in place.
func (l *InstanceLock) Release() error {
	return l.fl.Unlock()
}

// WriteFileAtomic writes data to a temporary file beside path, syncs it and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
