package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema and seeds the fixed access levels.
func Migrate(ctx context.Context, db *sql.DB) error {
	return Tx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		levels := NewAccessLevelsRepository(db)
		for _, level := range domain.SeedAccessLevels() {
			if err := levels.UpsertTx(ctx, tx, &level); err != nil {
				return fmt.Errorf("seed access level %s: %w", level.Code, err)
			}
		}
		return nil
	})
}

// ValidateSchema checks that required database tables exist.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"tenants", "usuarios", "niveis_acesso", "permissoes"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("missing table '%s' - run `suas-admin migrate` first", table)
		}
		if err != nil {
			return fmt.Errorf("failed to check schema: %w", err)
		}
	}

	return nil
}
