package dbkeeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nonibytes/dbkeeper/dbkeeper/catalog"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/mongodb"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/postgres"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlite"
)

// OpenOptions selects a backend. URI is a mongodb:// URI, a postgres DSN or
// the sqlite data directory.
type OpenOptions struct {
	Backend storage.Backend
	URI     string
	Logger  *slog.Logger
}

// Backends lists every supported backend name.
func Backends() []storage.Backend {
	return []storage.Backend{storage.BackendMongoDB, storage.BackendSQLite, storage.BackendPostgres}
}

// ParseBackend accepts a backend name, case-insensitively. "pg" and "mongo"
// are aliases.
func ParseBackend(s string) (storage.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mongodb", "mongo":
		return storage.BackendMongoDB, nil
	case "sqlite", "sqlite3":
		return storage.BackendSQLite, nil
	case "postgres", "postgresql", "pg":
		return storage.BackendPostgres, nil
	}
	return "", NewError(ErrConfig, fmt.Sprintf("unknown backend %q", s))
}

// Open connects the selected backend and wraps it in a Service.
func Open(ctx context.Context, opts OpenOptions) (*Service, error) {
	if opts.URI == "" {
		return nil, NewError(ErrConfig, "connection uri is required")
	}

	var (
		repo storage.Repository
		err  error
	)
	switch opts.Backend {
	case storage.BackendMongoDB:
		repo, err = mongodb.Open(ctx, opts.URI, opts.Logger)
	case storage.BackendSQLite:
		repo, err = sqlite.Open(opts.URI, opts.Logger)
	case storage.BackendPostgres:
		repo, err = postgres.Open(ctx, opts.URI, opts.Logger)
	default:
		return nil, NewError(ErrConfig, fmt.Sprintf("unknown backend %q", opts.Backend))
	}
	if err != nil {
		return nil, err
	}
	return NewService(repo, opts.Logger), nil
}

// OpenEntry connects the backend stored in a catalog entry.
func OpenEntry(ctx context.Context, e catalog.Entry, logger *slog.Logger) (*Service, error) {
	return Open(ctx, OpenOptions{Backend: e.Backend, URI: e.URI, Logger: logger})
}
