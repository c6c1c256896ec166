package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const tenantColumns = `id, subdominio, nome, email_contato, status, plano, limite_usuarios,
		       data_expiracao, created_at, updated_at`

// TenantsRepository handles tenant data persistence.
type TenantsRepository struct {
	db *sql.DB
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *sql.DB) *TenantsRepository {
	return &TenantsRepository{db: db}
}

// Create creates a new tenant and sets its generated ID.
func (r *TenantsRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	return r.CreateTx(ctx, r.db, tenant)
}

// CreateTx creates a new tenant within a transaction.
func (r *TenantsRepository) CreateTx(ctx context.Context, q Querier, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (subdominio, nome, email_contato, status, plano, limite_usuarios,
		                     data_expiracao, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		tenant.Subdomain,
		tenant.Name,
		tenant.ContactEmail,
		tenant.Status,
		tenant.Plan,
		tenant.MaxUsers,
		tenant.ExpiresAt,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Scan(&tenant.ID)
	return uniqueViolation(err, domain.ErrSubdomainTaken)
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// GetBySubdomain retrieves a tenant by its subdomain.
func (r *TenantsRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE subdominio = $1`
	return scanTenant(r.db.QueryRowContext(ctx, query, subdomain))
}

// List returns all customer tenants ordered by creation. The system tenant is excluded.
func (r *TenantsRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id <> 0 ORDER BY created_at ASC`
	return r.list(ctx, query)
}

// ListExpiringBefore returns active or trial tenants whose expiration falls before t.
func (r *TenantsRepository) ListExpiringBefore(ctx context.Context, t time.Time) ([]*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id <> 0
		  AND status IN ('active', 'trial')
		  AND data_expiracao IS NOT NULL
		  AND data_expiracao < $1
		ORDER BY data_expiracao ASC`
	return r.list(ctx, query, t)
}

func (r *TenantsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Update updates the mutable tenant attributes. The subdomain is immutable.
func (r *TenantsRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants
		SET nome = $1, email_contato = $2, status = $3, plano = $4,
		    limite_usuarios = $5, data_expiracao = $6, updated_at = NOW()
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		tenant.Name,
		tenant.ContactEmail,
		tenant.Status,
		tenant.Plan,
		tenant.MaxUsers,
		tenant.ExpiresAt,
		tenant.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := row.Scan(
		&tenant.ID,
		&tenant.Subdomain,
		&tenant.Name,
		&tenant.ContactEmail,
		&tenant.Status,
		&tenant.Plan,
		&tenant.MaxUsers,
		&tenant.ExpiresAt,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// LockUserLimitTx locks the tenant row for the rest of the transaction and
// returns its user limit. Concurrent user creations in the same tenant queue
// behind the lock.
func (r *TenantsRepository) LockUserLimitTx(ctx context.Context, q Querier, id int64) (int, error) {
	var limit int
	err := q.QueryRowContext(ctx,
		`SELECT limite_usuarios FROM tenants WHERE id = $1 FOR UPDATE`, id,
	).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrTenantNotFound
	}
	return limit, err
}
