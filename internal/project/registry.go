package project

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// Registry builds ProjectClients from locations. Local projects share one
// platform database handle; remote projects get a fresh API client each.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRegistry creates a registry. dsn may be empty when only remote
// projects are used; opening a local project then fails.
func NewRegistry(dsn string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{logger: logger}
	if dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open platform database: %w", err)
		}
		r.db = db
	}
	return r, nil
}

// Client resolves a project location to a client.
func (r *Registry) Client(loc core.ProjectLocation) (core.ProjectClient, error) {
	switch loc.Kind {
	case core.LocationLocal:
		if r.db == nil {
			return nil, fmt.Errorf("local project %s requires a platform database", loc.ProjectID)
		}
		return NewPostgresClient(r.db, loc.ProjectID, r.logger), nil
	case core.LocationAPI:
		return NewAPIClient(loc, r.logger), nil
	default:
		return nil, fmt.Errorf("unknown project location kind %q", loc.Kind)
	}
}

// Close releases the platform database handle, if any.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
