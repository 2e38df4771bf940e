// Package lock implements the advisory single-writer lock that guards
// one scheduler pass against concurrent invocations (§9, resolved:
// an O_EXCL lock file beside the state file).
package lock

import (
	"fmt"
	"os"
)

// Lock is a held advisory lock file. Release must be called exactly
// once to remove it.
type Lock struct {
	path string
}

// Acquire creates a lock file at <stateFile>.lock, failing if one
// already exists. The caller holds the process-wide right to run a
// pass until Release is called.
func Acquire(stateFile string) (*Lock, error) {
	path := stateFile + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lock: another scheduler pass is already running (%s exists)", path)
		}
		return nil, fmt.Errorf("lock: creating %s: %w", path, err)
	}
	f.Close()
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call from a deferred signal
// handler as well as normal exit.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: removing %s: %w", l.path, err)
	}
	return nil
}
