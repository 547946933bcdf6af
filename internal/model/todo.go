package model

// Todo is a todo entry as the remote API stores it.
// ID 0 is reserved for a client-side placeholder that was never saved.
type Todo struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Saved reports whether the todo carries a server-assigned id.
func (t Todo) Saved() bool { return t.ID > 0 }

// EntryState tags a rendered todo as pending or confirmed.
type EntryState int

const (
	EntryConfirmed EntryState = iota
	EntryPending
)

// Entry wraps a Todo with its create state. A pending entry is the
// optimistic placeholder shown while its create request is in flight.
type Entry struct {
	Todo
	State EntryState
}

func (e Entry) Pending() bool { return e.State == EntryPending }
