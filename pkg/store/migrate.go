package store

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration in migrations/ to bring a fresh
// or upgraded database to the current collection schema.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to set migration dialect")
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeServiceUnavailable, "failed to run migrations")
	}
	return nil
}
