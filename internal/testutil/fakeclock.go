package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/idilsaglam/todos/internal/store"
)

var _ store.Clock = (*FakeClock)(nil)

// FakeClock fires AfterFunc callbacks only when Advance moves past them.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewFakeClock returns a clock at time zero.
func NewFakeClock() *FakeClock { return &FakeClock{} }

// AfterFunc implements store.Clock.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) store.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every callback that became due,
// in deadline order. Callbacks run on the caller's goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that are neither stopped nor fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
