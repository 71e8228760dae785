package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errDisk = errors.New("disk full")

// fakeClock is a settable clock for cooldown tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return NewBreaker(BreakerConfig{Name: "test", MaxFailures: maxFailures, Cooldown: time.Minute, Now: clock.now}), clock
}

func fail() error { return errDisk }
func ok() error   { return nil }

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	if b.maxFailures != 3 || b.cooldown != 30*time.Second || b.now == nil {
		t.Errorf("defaults = %d, %v", b.maxFailures, b.cooldown)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v", b.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3)

	for i := range 2 {
		if err := b.Do(fail); !errors.Is(err, errDisk) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", b.State())
	}
	_ = b.Do(fail)
	if b.State() != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", b.State())
	}

	called := false
	if err := b.Do(func() error { called = true; return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn ran while open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2)
	_ = b.Do(fail)
	_ = b.Do(ok)
	_ = b.Do(fail)
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed: failures were not consecutive", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1)
	_ = b.Do(fail)

	clock.advance(59 * time.Second)
	if err := b.Do(ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("before cooldown: err = %v, want ErrOpen", err)
	}

	clock.advance(time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after cooldown = %v, want half-open", b.State())
	}
	if err := b.Do(ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state after good probe = %v, want closed", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(2)
	_ = b.Do(fail)
	_ = b.Do(fail)
	clock.advance(time.Minute)

	if err := b.Do(fail); !errors.Is(err, errDisk) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state after failed probe = %v, want open", b.State())
	}
	clock.advance(30 * time.Second)
	if b.State() != StateOpen {
		t.Errorf("cooldown did not restart at the failed probe")
	}
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(1)
	_ = b.Do(fail)
	clock.advance(time.Minute)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe

	if err := b.Do(ok); !errors.Is(err, ErrOpen) {
		t.Errorf("second call during probe: err = %v, want ErrOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1)
	_ = b.Do(fail)
	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("state after Reset = %v", b.State())
	}
	if err := b.Do(ok); err != nil {
		t.Errorf("Do after Reset: %v", err)
	}
}
