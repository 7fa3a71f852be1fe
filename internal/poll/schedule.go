package poll

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule yields the wait before each retry. It is a backoff.BackOff, so
// the first NextBackOff after Reset is the wait following the first attempt.
type Schedule = backoff.BackOff

// Tiered waits FastInterval after each of the first Fast attempts and
// Interval after every later one. It suits signals that usually arrive
// within seconds but occasionally take minutes.
type Tiered struct {
	Fast         int
	FastInterval time.Duration
	Interval     time.Duration

	n int
}

// NewTiered returns a Tiered schedule.
func NewTiered(fast int, fastInterval, interval time.Duration) *Tiered {
	return &Tiered{Fast: fast, FastInterval: fastInterval, Interval: interval}
}

// NextBackOff implements backoff.BackOff.
func (t *Tiered) NextBackOff() time.Duration {
	i := t.n
	t.n++
	if i < t.Fast {
		return t.FastInterval
	}
	return t.Interval
}

// Reset implements backoff.BackOff.
func (t *Tiered) Reset() { t.n = 0 }

// Fibonacci waits 3, 5, 8, 13, 21, ... of Unit, never more than Max.
type Fibonacci struct {
	Unit time.Duration
	Max  time.Duration

	a, b int64
}

// NewFibonacci returns a Fibonacci schedule counting in seconds.
func NewFibonacci(max time.Duration) *Fibonacci {
	f := &Fibonacci{Unit: time.Second, Max: max}
	f.Reset()
	return f
}

// NextBackOff implements backoff.BackOff.
func (f *Fibonacci) NextBackOff() time.Duration {
	if f.a == 0 {
		f.Reset()
	}
	d := time.Duration(f.a) * f.Unit
	// Stop growing once capped so the sequence cannot overflow.
	if f.Max > 0 && d >= f.Max {
		return f.Max
	}
	f.a, f.b = f.b, f.a+f.b
	return d
}

// Reset implements backoff.BackOff.
func (f *Fibonacci) Reset() { f.a, f.b = 3, 5 }
