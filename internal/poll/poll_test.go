package poll

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ierrors "github.com/CoderDKai/oai-team-automation/internal/errors"
)

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func TestPoll_SucceedsOnThirdAttempt(t *testing.T) {
	timer := newFakeTimer()
	calls := 0
	fetch := func(context.Context) (int, bool, error) {
		calls++
		return calls, true, nil
	}
	check := func(n int) (string, bool, error) {
		if n < 3 {
			return "", false, nil
		}
		return "code-123", true, nil
	}

	res := Poll(context.Background(), fetch, check, Options{
		MaxAttempts: 10,
		Schedule:    NewTiered(5, time.Second, 3*time.Second),
		Timer:       timer,
	})

	if !res.OK || res.Value != "code-123" {
		t.Fatalf("result = %+v, want OK code-123", res)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.Waits != 2 || len(timer.waits) != 2 {
		t.Errorf("waits = %d (timer saw %d), want exactly 2", res.Waits, len(timer.waits))
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
}

func TestPoll_TimesOutWithoutPanicking(t *testing.T) {
	timer := newFakeTimer()
	fetch := func(context.Context) (string, bool, error) { return "", false, nil }
	check := func(string) (string, bool, error) { return "", false, nil }

	res := Poll(context.Background(), fetch, check, Options{MaxAttempts: 4, Timer: timer})

	if res.OK {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ierrors.ErrTimeout) {
		t.Errorf("Err = %v, want ErrTimeout", res.Err)
	}
	if res.Attempts != 4 || res.Waits != 3 {
		t.Errorf("attempts = %d waits = %d, want 4 and 3", res.Attempts, res.Waits)
	}
}

func TestPoll_ErrorsAndPanicsAreNotYet(t *testing.T) {
	timer := newFakeTimer()
	calls := 0
	fetch := func(context.Context) (int, bool, error) {
		calls++
		switch calls {
		case 1:
			return 0, false, errors.New("connection reset")
		case 2:
			panic("boom")
		}
		return calls, true, nil
	}
	check := func(n int) (int, bool, error) {
		if n == 3 {
			return 0, false, errors.New("unparsable")
		}
		if n == 4 {
			var m map[string]int
			m["x"] = 1 // nil map write panics
		}
		return n, true, nil
	}

	res := Poll(context.Background(), fetch, check, Options{MaxAttempts: 10, Timer: timer})

	if !res.OK || res.Value != 5 || res.Attempts != 5 {
		t.Errorf("result = %+v, want OK value 5 after 5 attempts", res)
	}
}

func TestPoll_TimeoutCarriesLastError(t *testing.T) {
	fetch := func(context.Context) (int, bool, error) { return 0, false, errors.New("unreachable") }
	check := func(int) (int, bool, error) { return 0, true, nil }

	res := Poll(context.Background(), fetch, check, Options{MaxAttempts: 2, Timer: newFakeTimer()})

	if res.OK || !errors.Is(res.Err, ierrors.ErrTimeout) {
		t.Fatalf("result = %+v", res)
	}
	if got := res.Err.Error(); got == "" || !containsAll(got, "unreachable") {
		t.Errorf("Err = %q, want the last cause included", got)
	}
}

func TestPoll_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(context.Context) (int, bool, error) {
		cancel()
		return 0, false, nil
	}
	check := func(int) (int, bool, error) { return 0, false, nil }

	res := Poll(ctx, fetch, check, Options{MaxAttempts: 10, Timer: newFakeTimer()})

	if res.OK || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("result = %+v, want context.Canceled", res)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestPoll_SingleAttemptMinimum(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (int, bool, error) { calls++; return 0, false, nil }
	check := func(int) (int, bool, error) { return 0, false, nil }

	res := Poll(context.Background(), fetch, check, Options{MaxAttempts: 0, Timer: newFakeTimer()})

	if calls != 1 || res.Waits != 0 {
		t.Errorf("calls = %d waits = %d, want 1 and 0", calls, res.Waits)
	}
}

func TestTiered(t *testing.T) {
	s := NewTiered(2, time.Second, 5*time.Second)
	want := []time.Duration{time.Second, time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := s.NextBackOff(); got != w {
			t.Errorf("wait %d = %s, want %s", i, got, w)
		}
	}
	s.Reset()
	if got := s.NextBackOff(); got != time.Second {
		t.Errorf("after Reset = %s, want 1s", got)
	}
}

func TestFibonacci(t *testing.T) {
	s := NewFibonacci(20 * time.Second)
	want := []int{3, 5, 8, 13, 20, 20}
	for i, w := range want {
		if got := s.NextBackOff(); got != time.Duration(w)*time.Second {
			t.Errorf("wait %d = %s, want %ds", i, got, w)
		}
	}
	s.Reset()
	if got := s.NextBackOff(); got != 3*time.Second {
		t.Errorf("after Reset = %s, want 3s", got)
	}
}

func TestPoll_FibonacciSchedule(t *testing.T) {
	timer := newFakeTimer()
	fetch := func(context.Context) (int, bool, error) { return 0, false, nil }
	check := func(int) (int, bool, error) { return 0, false, nil }

	Poll(context.Background(), fetch, check, Options{MaxAttempts: 4, Schedule: NewFibonacci(time.Minute), Timer: timer})

	want := []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second}
	if len(timer.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", timer.waits, want)
	}
	for i := range want {
		if timer.waits[i] != want[i] {
			t.Errorf("wait %d = %s, want %s", i, timer.waits[i], want[i])
		}
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
