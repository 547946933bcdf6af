package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	todoSchemaURL  = "https://todos.local/schema/todo.json"
	todosSchemaURL = "https://todos.local/schema/todos.json"
)

const todoSchema = `{
  "type": "object",
  "required": ["id", "userId", "title", "completed"],
  "properties": {
    "id":        {"type": "integer", "minimum": 1},
    "userId":    {"type": "integer"},
    "title":     {"type": "string"},
    "completed": {"type": "boolean"}
  }
}`

const todosSchema = `{
  "type": "array",
  "items": {"$ref": "todo.json"}
}`

type schemas struct {
	todo  *jsonschema.Schema
	todos *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(todoSchemaURL, strings.NewReader(todoSchema)); err != nil {
		return nil, fmt.Errorf("add todo schema: %w", err)
	}
	if err := c.AddResource(todosSchemaURL, strings.NewReader(todosSchema)); err != nil {
		return nil, fmt.Errorf("add todos schema: %w", err)
	}
	todo, err := c.Compile(todoSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile todo schema: %w", err)
	}
	todos, err := c.Compile(todosSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile todos schema: %w", err)
	}
	return &schemas{todo: todo, todos: todos}, nil
}

// validate checks raw JSON against s before it is decoded into Go types.
func validate(s *jsonschema.Schema, what string, raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &SchemaError{What: what, Err: err}
	}
	if err := s.Validate(doc); err != nil {
		return &SchemaError{What: what, Err: err}
	}
	return nil
}
