// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/siliconforge/eda-backend/migrations"
)

// Migrate applies all pending schema migrations from the embedded filesystem.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
