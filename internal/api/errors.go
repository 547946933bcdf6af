package api

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s",
		e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// SchemaError is returned when a response body does not look like todos.
type SchemaError struct {
	What string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.What, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
