package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSON-backed file storage. Single file, human-readable, portable.
// No locking; callers are a single-user CLI.

// ErrNotFound is returned by Load when the file does not exist.
var ErrNotFound = errors.New("jsonstore: file not found")

// Load decodes the JSON file at path into v.
func Load(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// Save writes v as indented JSON with the given permissions, creating the
// parent directory with 0700 when missing.
func Save(path string, v any, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(path, b, perm); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Remove deletes the file at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
