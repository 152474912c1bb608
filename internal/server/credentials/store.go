// Package credentials stores usernames and passwords for the chat server.
//
// Backends:
//   - memory:   process-local map, lost on restart.
//   - file:     flat "username password" lines, rewritten atomically.
//   - postgres: users table with argon2id verifiers, migrated with goose.
//   - sqlite:   same schema as postgres in a local database file.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Store is the credential capability the chat server needs.
type Store interface {
	Exists(ctx context.Context, username string) (bool, error)
	// Verify reports whether password matches. Unknown users do not match.
	Verify(ctx context.Context, username, password string) (bool, error)
	// Create fails with common.ErrAlreadyExists for a taken username.
	Create(ctx context.Context, username, password string) error
	Close() error
}

// ErrMalformed rejects empty credentials and credentials with whitespace,
// which the line-oriented file format and the command syntax cannot carry.
var ErrMalformed = errors.New("credentials must be non-empty and contain no whitespace")

// Validate checks a username or password for ErrMalformed.
func Validate(s string) error {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return ErrMalformed
	}
	return nil
}

// Open returns the store selected by backend. file is used by the file
// backend, dsn by postgres and sqlite.
func Open(ctx context.Context, backend, file, dsn string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return OpenFileStore(file)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", backend)
	}
}
