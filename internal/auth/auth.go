// Package auth resolves the API bearer token.
package auth

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/idilsaglam/todos/internal/store/jsonstore"
)

const (
	// EnvToken overrides any stored token.
	EnvToken = "TODOS_TOKEN"

	credFileName = "credentials.json"
)

// Token sources.
const (
	SourceEnv  = "env"
	SourceFile = "file"
)

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional (JWT or server-provided)
}

// CredentialsPath is where the token lives inside the config dir.
func CredentialsPath(dir string) string {
	return filepath.Join(dir, credFileName)
}

// GetToken returns the env token if set, else the stored one.
// It returns nil, nil when neither exists.
func GetToken(dir string) (*TokenInfo, error) {
	// 1) env override
	if env := strings.TrimSpace(getenv(EnvToken)); env != "" {
		return &TokenInfo{Token: stripBearer(env), Source: SourceEnv}, nil
	}

	// 2) file
	var ti TokenInfo
	if err := jsonstore.Load(CredentialsPath(dir), &ti); err != nil {
		if errors.Is(err, jsonstore.ErrNotFound) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	ti.Source = SourceFile
	return &ti, nil
}

// SetToken stores token in dir with owner-only permissions.
func SetToken(dir, token string, expires *time.Time) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	ti := TokenInfo{
		Token:     token,
		Source:    SourceFile,
		CreatedAt: now(),
		ExpiresAt: expires,
	}
	if err := jsonstore.Save(CredentialsPath(dir), ti, 0o600); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token. Nothing stored is fine.
func DeleteToken(dir string) error {
	return jsonstore.Remove(CredentialsPath(dir))
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
