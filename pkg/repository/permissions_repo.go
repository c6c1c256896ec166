package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const permissionColumns = `id, tenant_id, nivel_acesso, modulo, pode_visualizar, pode_criar,
		       pode_editar, pode_excluir, pode_exportar, restrito_unidade`

// ErrPermissionNotFound is returned when no row matches role and module.
var ErrPermissionNotFound = errors.New("permission row not found")

// PermissionsRepository handles permissoes persistence.
type PermissionsRepository struct {
	db *sql.DB
}

// NewPermissionsRepository creates a new permissions repository.
func NewPermissionsRepository(db *sql.DB) *PermissionsRepository {
	return &PermissionsRepository{db: db}
}

// Find returns the effective row for role and module in the tenant. A
// tenant-specific row overrides the platform default.
func (r *PermissionsRepository) Find(ctx context.Context, tenantID int64, role domain.Role, module string) (*domain.Permission, error) {
	query := `SELECT ` + permissionColumns + `
		FROM permissoes
		WHERE nivel_acesso = $1 AND modulo = $2 AND (tenant_id = $3 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1`
	p, err := scanPermission(r.db.QueryRowContext(ctx, query, role, module, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPermissionNotFound
	}
	return p, err
}

// ListEffective returns the effective row per module for role in the tenant.
func (r *PermissionsRepository) ListEffective(ctx context.Context, tenantID int64, role domain.Role) ([]*domain.Permission, error) {
	query := `SELECT DISTINCT ON (modulo) ` + permissionColumns + `
		FROM permissoes
		WHERE nivel_acesso = $1 AND (tenant_id = $2 OR tenant_id IS NULL)
		ORDER BY modulo, tenant_id NULLS LAST`

	rows, err := r.db.QueryContext(ctx, query, role, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []*domain.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// UpsertTx inserts or replaces a permission row. Default rows (nil TenantID)
// and tenant overrides are keyed by separate partial unique indexes.
func (r *PermissionsRepository) UpsertTx(ctx context.Context, q Querier, p *domain.Permission) error {
	if err := p.Validate(); err != nil {
		return err
	}

	conflict := `ON CONFLICT (nivel_acesso, modulo) WHERE tenant_id IS NULL`
	if p.TenantID != nil {
		conflict = `ON CONFLICT (tenant_id, nivel_acesso, modulo) WHERE tenant_id IS NOT NULL`
	}
	query := `
		INSERT INTO permissoes (tenant_id, nivel_acesso, modulo, pode_visualizar, pode_criar,
		                        pode_editar, pode_excluir, pode_exportar, restrito_unidade)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		` + conflict + ` DO UPDATE SET
		    pode_visualizar = EXCLUDED.pode_visualizar,
		    pode_criar = EXCLUDED.pode_criar,
		    pode_editar = EXCLUDED.pode_editar,
		    pode_excluir = EXCLUDED.pode_excluir,
		    pode_exportar = EXCLUDED.pode_exportar,
		    restrito_unidade = EXCLUDED.restrito_unidade
		RETURNING id
	`
	c := p.Capabilities
	err := q.QueryRowContext(ctx, query,
		p.TenantID, p.Role, p.Module, c.View, c.Create, c.Edit, c.Delete, c.Export, p.UnitRestricted,
	).Scan(&p.ID)
	return foreignKeyViolation(err, domain.ErrAccessLevelNotFound)
}

func scanPermission(row rowScanner) (*domain.Permission, error) {
	var p domain.Permission
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Role, &p.Module,
		&p.Capabilities.View, &p.Capabilities.Create, &p.Capabilities.Edit,
		&p.Capabilities.Delete, &p.Capabilities.Export, &p.UnitRestricted,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
