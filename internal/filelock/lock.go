package filelock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
)

// Suffix is appended to a target path to name its lock file.
const Suffix = ".lock"

// Retry intervals while waiting for a held lock.
const (
	initialRetryInterval = 25 * time.Millisecond
	maxRetryInterval     = 500 * time.Millisecond
)

var errHeld = errors.New("lock held by another process")

// Lock is an exclusive advisory lock on a lock file.
type Lock struct {
	path  string
	state lockState
}

// New returns an unlocked Lock for the lock file at path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// For returns an unlocked Lock guarding target, using target+Suffix.
func For(target string) *Lock {
	return New(target + Suffix)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// TryLock attempts to take the lock without waiting. It reports false when
// another holder has it.
func (l *Lock) TryLock() (bool, error) {
	if l.state.held() {
		return true, nil
	}
	return l.state.try(l.path)
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.state.held() {
		return nil
	}
	return l.state.release(l.path)
}

// Acquire takes the lock, retrying with capped exponential backoff until
// timeout elapses or ctx is done. A timeout is reported as
// errors.ErrLockTimeout. A non-positive timeout makes a single attempt.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	op := func() error {
		ok, err := l.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errHeld
		}
		return nil
	}

	var policy backoff.BackOff
	if timeout <= 0 {
		policy = &backoff.StopBackOff{}
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = initialRetryInterval
		eb.MaxInterval = maxRetryInterval
		eb.MaxElapsedTime = timeout
		policy = eb
	}

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errHeld):
		return fmt.Errorf("%s after %s: %w", l.path, timeout, errors.ErrLockTimeout)
	default:
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
}
