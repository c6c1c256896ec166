package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// AccessLevelsRepository handles niveis_acesso persistence.
type AccessLevelsRepository struct {
	db *sql.DB
}

// NewAccessLevelsRepository creates a new access levels repository.
func NewAccessLevelsRepository(db *sql.DB) *AccessLevelsRepository {
	return &AccessLevelsRepository{db: db}
}

// GetByCode retrieves an access level by code.
func (r *AccessLevelsRepository) GetByCode(ctx context.Context, code domain.Role) (*domain.AccessLevel, error) {
	query := `
		SELECT codigo, nome, hierarquia, permissoes, created_at
		FROM niveis_acesso
		WHERE codigo = $1
	`
	var level domain.AccessLevel
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&level.Code, &level.Name, &level.Rank, &payload, &level.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccessLevelNotFound
	}
	if err != nil {
		return nil, err
	}
	level.Payload = payload
	return &level, nil
}

// List returns all access levels ordered by hierarchy.
func (r *AccessLevelsRepository) List(ctx context.Context) ([]*domain.AccessLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT codigo, nome, hierarquia, permissoes, created_at
		FROM niveis_acesso
		ORDER BY hierarquia ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []*domain.AccessLevel
	for rows.Next() {
		var level domain.AccessLevel
		var payload []byte
		if err := rows.Scan(&level.Code, &level.Name, &level.Rank, &payload, &level.CreatedAt); err != nil {
			return nil, err
		}
		level.Payload = payload
		levels = append(levels, &level)
	}
	return levels, rows.Err()
}

// UpsertTx inserts or updates an access level's name and rank. The free-form
// payload is left untouched on update.
func (r *AccessLevelsRepository) UpsertTx(ctx context.Context, q Querier, level *domain.AccessLevel) error {
	query := `
		INSERT INTO niveis_acesso (codigo, nome, hierarquia)
		VALUES ($1, $2, $3)
		ON CONFLICT (codigo) DO UPDATE SET nome = EXCLUDED.nome, hierarquia = EXCLUDED.hierarquia
	`
	_, err := q.ExecContext(ctx, query, level.Code, level.Name, level.Rank)
	return err
}
