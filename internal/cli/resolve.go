package cli

import (
	"context"
	"log/slog"

	"github.com/mitchellh/go-homedir"

	"github.com/nonibytes/dbkeeper/dbkeeper"
	"github.com/nonibytes/dbkeeper/dbkeeper/catalog"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/internal/cliopt"
)

// openService turns the global options into a connection.
//
//   - --service: the catalog entry is authenticated with --password and its
//     backend and uri are used.
//   - otherwise --backend and --uri are used as given; a sqlite uri may
//     start with ~.
func openService(ctx context.Context, g cliopt.GlobalOptions, reg *catalog.Registry, logger *slog.Logger) (*dbkeeper.Service, error) {
	if g.Service != "" {
		e, err := reg.Authenticate(g.Service, g.Password)
		if err != nil {
			return nil, err
		}
		logger.Debug("service resolved", "service", e.Name, "backend", e.Backend)
		return dbkeeper.OpenEntry(ctx, e, logger)
	}

	backend, err := dbkeeper.ParseBackend(g.Backend)
	if err != nil {
		return nil, err
	}
	uri := g.URI
	if uri == "" {
		return nil, dbkeeper.NewError(dbkeeper.ErrConfig, "no connection selected: pass --service or --uri")
	}
	if backend == storage.BackendSQLite {
		if uri, err = homedir.Expand(uri); err != nil {
			return nil, dbkeeper.Wrap(dbkeeper.ErrConfig, "expand sqlite directory", err)
		}
	}
	return dbkeeper.Open(ctx, dbkeeper.OpenOptions{Backend: backend, URI: uri, Logger: logger})
}
