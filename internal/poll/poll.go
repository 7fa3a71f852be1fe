// Package poll implements a generic fetch-check-wait loop used to await
// asynchronous external signals such as a one-time code or a freshly
// created backend account becoming visible.
//
// The loop knows nothing about what it waits for: fetch produces a payload
// (or nothing yet), check extracts a definitive result (or not yet). Errors
// and panics inside either are logged and count as "not yet".
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
)

// FetchFunc returns a payload and whether one is available yet.
type FetchFunc[T any] func(ctx context.Context) (T, bool, error)

// CheckFunc extracts a result from a payload and reports whether it is final.
type CheckFunc[T, R any] func(payload T) (R, bool, error)

// Options configures one Poll call.
type Options struct {
	// MaxAttempts bounds the number of fetch attempts. Values below 1 mean 1.
	MaxAttempts int
	// Schedule yields waits between attempts. Defaults to DefaultSchedule().
	Schedule Schedule
	// Timer performs the waits. Nil uses real time.
	Timer backoff.Timer
	// Name labels log entries.
	Name   string
	Logger *logging.Logger
}

// DefaultSchedule returns five 1s waits followed by 3s waits.
func DefaultSchedule() Schedule {
	return NewTiered(5, time.Second, 3*time.Second)
}

// Result reports the outcome of Poll.
type Result[R any] struct {
	OK       bool
	Value    R
	Attempts int
	Waits    int
	Elapsed  time.Duration
	// Err is nil when OK. Otherwise it matches errors.ErrTimeout when the
	// attempts ran out, or the context error when ctx ended first.
	Err error
}

var errNotYet = errors.New("result not available yet")

// Poll repeats fetch and check until check yields a result, the attempts
// are exhausted or ctx is done. It never panics on behalf of fetch or check.
func Poll[T, R any](ctx context.Context, fetch FetchFunc[T], check CheckFunc[T, R], opts Options) Result[R] {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With("poll", opts.Name)

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	schedule := opts.Schedule
	if schedule == nil {
		schedule = DefaultSchedule()
	}

	var res Result[R]
	var lastErr error
	start := time.Now()

	op := func() error {
		res.Attempts++
		value, ok, err := attempt(ctx, fetch, check)
		if err != nil {
			lastErr = err
			logger.Warn("poll attempt failed", "attempt", res.Attempts, "error", err.Error())
			return err
		}
		if !ok {
			logger.Debug("poll attempt found nothing", "attempt", res.Attempts)
			return errNotYet
		}
		res.Value = value
		return nil
	}

	notify := func(_ error, wait time.Duration) {
		res.Waits++
		logger.Debug("poll waiting", "attempt", res.Attempts, "wait", wait.String())
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(maxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, policy, notify, opts.Timer)
	res.Elapsed = time.Since(start)

	switch {
	case err == nil:
		res.OK = true
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	default:
		res.Err = errors.NewTimeoutError(nameOr(opts.Name), res.Elapsed).WithCause(lastErr)
		logger.Warn("poll gave up", "attempts", res.Attempts, "elapsed", res.Elapsed.String())
	}
	return res
}

// attempt runs one fetch/check round, converting panics into errors.
func attempt[T, R any](ctx context.Context, fetch FetchFunc[T], check CheckFunc[T, R]) (value R, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ok = false
		}
	}()

	payload, found, err := fetch(ctx)
	if err != nil {
		return value, false, fmt.Errorf("fetch: %w", err)
	}
	if !found {
		return value, false, nil
	}
	value, ok, err = check(payload)
	if err != nil {
		return value, false, fmt.Errorf("check: %w", err)
	}
	return value, ok, nil
}

func nameOr(name string) string {
	if name == "" {
		return "poll"
	}
	return name
}
