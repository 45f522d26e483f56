// Package lock prevents two updatectl invocations from interleaving writes
// to the same ENC directory.
package lock

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrBusy indicates that another instance already holds the lock.
var ErrBusy = errors.New("another instance is already running")

type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock file without blocking.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (see %s)", ErrBusy, path)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}
