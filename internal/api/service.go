// Package api talks to the remote todos resource.
package api

import (
	"context"

	"github.com/idilsaglam/todos/internal/model"
)

// TodoService is the backend the store works against.
// Implementations return plain data or a transport error; they never
// touch client state.
type TodoService interface {
	// List returns every todo owned by userID in server order.
	List(ctx context.Context, userID int) ([]model.Todo, error)

	// Create saves a new, not completed todo and returns it with its
	// server-assigned id.
	Create(ctx context.Context, userID int, title string) (model.Todo, error)

	// Delete removes the todo with the given id.
	Delete(ctx context.Context, id int) error
}
