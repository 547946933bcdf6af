// Package logging builds the charmbracelet/log loggers used across the app.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is printed before every log line.
const Prefix = "todos"

// ParseLevel maps a config string to a log level. Unknown values mean info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New returns a text logger writing to w.
func New(w io.Writer, level string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(level),
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
		Prefix:          Prefix,
	})
}

// NewFile opens path for appending and returns a logfmt logger on it, so
// the terminal stays free for the interactive UI. Close the returned file
// when done.
func NewFile(path, level string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l := log.NewWithOptions(f, log.Options{
		Level:           ParseLevel(level),
		Formatter:       log.LogfmtFormatter,
		ReportTimestamp: true,
		Prefix:          Prefix,
	})
	return l, f, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
