package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate применяет встроенную схему. Скрипт идемпотентен (IF NOT EXISTS),
// поэтому прогон на живой базе безопасен.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
