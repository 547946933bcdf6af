package store

import "github.com/idilsaglam/todos/internal/model"

// State is a read-only copy of the store taken by Snapshot. Views render
// from it and call back into the Store to change anything.
type State struct {
	Todos       []model.Todo
	Filter      model.Filter
	Placeholder *model.Todo
	Submitting  bool
	Loading     bool
	Loaded      bool
	Notice      model.Notice
	Draft       string

	deleting map[int]bool
}

// Visible returns the todos matching the current filter, in list order.
func (s State) Visible() []model.Todo {
	out := make([]model.Todo, 0, len(s.Todos))
	for _, t := range s.Todos {
		if s.Filter.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Entries is what a list view draws: visible confirmed todos followed by
// the pending placeholder, if a create is in flight.
func (s State) Entries() []model.Entry {
	visible := s.Visible()
	out := make([]model.Entry, 0, len(visible)+1)
	for _, t := range visible {
		out = append(out, model.Entry{Todo: t, State: model.EntryConfirmed})
	}
	if s.Placeholder != nil {
		out = append(out, model.Entry{Todo: *s.Placeholder, State: model.EntryPending})
	}
	return out
}

func (s State) HasTodos() bool { return len(s.Todos) > 0 }

// AllCompleted is false for an empty list.
func (s State) AllCompleted() bool {
	if !s.HasTodos() {
		return false
	}
	for _, t := range s.Todos {
		if !t.Completed {
			return false
		}
	}
	return true
}

func (s State) ActiveCount() int {
	n := 0
	for _, t := range s.Todos {
		if !t.Completed {
			n++
		}
	}
	return n
}

func (s State) CompletedCount() int { return len(s.Todos) - s.ActiveCount() }

// IsDeleting reports whether a delete request for id is in flight.
func (s State) IsDeleting(id int) bool { return s.deleting[id] }
