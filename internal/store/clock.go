package store

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The store uses it for the notice auto-clear.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
