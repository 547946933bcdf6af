// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/idilsaglam/todos/internal/api"
	"github.com/idilsaglam/todos/internal/model"
)

// ErrTransport is the generic failure injected by FakeService.
var ErrTransport = errors.New("transport error")

var _ api.TodoService = (*FakeService)(nil)

// FakeService is an in-memory implementation of api.TodoService for testing.
type FakeService struct {
	mu     sync.Mutex
	todos  []model.Todo
	nextID int
	calls  []string

	// Error injection for testing
	ListErr   error
	CreateErr error
	DeleteErr map[int]error // id -> error

	// PanicOnDelete makes Delete panic for the given id.
	PanicOnDelete int

	// Hooks run inside the call, before it returns. Tests use them to look
	// at the store while a request is in flight.
	OnCreate func(title string)
	OnDelete func(id int)
}

// NewFakeService creates a FakeService holding todos.
func NewFakeService(todos ...model.Todo) *FakeService {
	f := &FakeService{
		nextID:    1,
		DeleteErr: make(map[int]error),
	}
	for _, t := range todos {
		f.todos = append(f.todos, t)
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
	}
	return f
}

// FailDelete makes Delete fail with ErrTransport for the given ids.
func (f *FakeService) FailDelete(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.DeleteErr[id] = ErrTransport
	}
}

// Todos returns what the fake backend currently holds.
func (f *FakeService) Todos() []model.Todo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Todo(nil), f.todos...)
}

// Calls returns the calls made so far, e.g. "list 1", "create Buy milk", "delete 3".
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts calls whose name starts with prefix.
func (f *FakeService) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// List implements api.TodoService.
func (f *FakeService) List(ctx context.Context, userID int) ([]model.Todo, error) {
	f.record(fmt.Sprintf("list %d", userID))
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Todo
	for _, t := range f.todos {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create implements api.TodoService.
func (f *FakeService) Create(ctx context.Context, userID int, title string) (model.Todo, error) {
	f.record("create " + title)
	if f.OnCreate != nil {
		f.OnCreate(title)
	}
	if f.CreateErr != nil {
		return model.Todo{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := model.Todo{ID: f.nextID, UserID: userID, Title: title}
	f.nextID++
	f.todos = append(f.todos, t)
	return t, nil
}

// Delete implements api.TodoService.
func (f *FakeService) Delete(ctx context.Context, id int) error {
	f.record(fmt.Sprintf("delete %d", id))
	if f.OnDelete != nil {
		f.OnDelete(id)
	}
	if f.PanicOnDelete != 0 && f.PanicOnDelete == id {
		panic(fmt.Sprintf("fake service: delete %d", id))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DeleteErr[id]; err != nil {
		return err
	}
	for i, t := range f.todos {
		if t.ID == id {
			f.todos = append(f.todos[:i], f.todos[i+1:]...)
			break
		}
	}
	return nil
}

func (f *FakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}
