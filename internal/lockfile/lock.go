// Package lockfile implements the advisory cross-process lock used to
// serialize writes to the memory store's base directory.
//
// Unlike beads' daemon lock (which flocks a file for the lifetime of a
// single long-running daemon process), this lock has no persistent owner:
// any of many independent editor processes may acquire and release it
// within the span of one request. Exclusive-create on a well-known
// filename is the primitive that behaves identically across every
// filesystem the store might live on, so acquisition is built on
// os.O_EXCL rather than flock.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// LockFileName is the advisory lock file created inside a store's base directory.
const LockFileName = ".memorix.lock"

// ErrLockTimeout is returned when a lock could not be acquired within the
// retry budget and the final force-unlink-then-create attempt also failed.
var ErrLockTimeout = errors.New("lockfile: timed out acquiring lock")

const (
	retryInterval = 50 * time.Millisecond
	maxAttempts   = 60 // ~3s at 50ms intervals
	staleAfter    = 10 * time.Second
)

// info is the advisory (debugging-only) payload written into the lock file.
// Correctness never depends on this content, only on exclusive-create.
type info struct {
	PID  int       `json:"pid"`
	Time time.Time `json:"time"`
}

// Acquire creates lockPath exclusively, retrying on collision for up to
// ~3 seconds. A lock file whose mtime is older than 10s is considered
// abandoned by a crashed holder and is force-removed so acquisition can
// proceed immediately. If every attempt is exhausted, one final
// force-unlink-then-create is attempted before giving up with
// ErrLockTimeout.
func Acquire(lockPath string) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := create(lockPath); err == nil {
			return nil
		} else if !os.IsExist(err) {
			return fmt.Errorf("lockfile: create %s: %w", lockPath, err)
		}

		if removeIfStale(lockPath) {
			continue // retry immediately, no sleep, per spec
		}

		time.Sleep(retryInterval)
	}

	// Final forced attempt: unlink unconditionally, then create.
	_ = os.Remove(lockPath)
	if err := create(lockPath); err != nil {
		return ErrLockTimeout
	}
	return nil
}

// Release removes lockPath. A missing lock file is not an error.
func Release(lockPath string) error {
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: release %s: %w", lockPath, err)
	}
	return nil
}

// WithLock acquires lockPath, runs action, and releases the lock on every
// exit path, including a panic unwinding through action.
func WithLock(lockPath string, action func() error) (err error) {
	if err := Acquire(lockPath); err != nil {
		return err
	}
	defer func() {
		if relErr := Release(lockPath); err == nil {
			err = relErr
		}
	}()
	return action()
}

// create performs the exclusive-create; os.IsExist(err) distinguishes
// "someone else holds it" from a real IO failure.
func create(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	payload, _ := json.Marshal(info{PID: os.Getpid(), Time: time.Now()})
	_, _ = f.Write(payload) // contents are for debugging only
	return nil
}

// removeIfStale unlinks lockPath if its mtime is older than staleAfter,
// returning true if it removed the file (caller should retry immediately
// rather than sleep).
func removeIfStale(lockPath string) bool {
	st, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	if time.Since(st.ModTime()) <= staleAfter {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}
