package model

import (
	"fmt"
	"strings"
)

// Filter selects which todos are displayed. It never changes the list itself.
type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

// Filters returns every filter in display order.
func Filters() []Filter {
	return []Filter{FilterAll, FilterActive, FilterCompleted}
}

func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// Label is the capitalized name used in tabs and headers.
func (f Filter) Label() string {
	s := f.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Match reports whether t is shown under f.
func (f Filter) Match(t Todo) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Next cycles All -> Active -> Completed -> All.
func (f Filter) Next() Filter {
	return Filter((int(f) + 1) % len(Filters()))
}

// ParseFilter accepts "all", "active" or "completed" (case-insensitive).
// An empty string means all.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed", "done":
		return FilterCompleted, nil
	}
	return FilterAll, fmt.Errorf("unknown filter %q (want all, active or completed)", s)
}
