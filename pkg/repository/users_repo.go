package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const userColumns = `id, tenant_id, username, email, senha_hash, nome, nivel_acesso, unidade_id,
		       ativo, totp_secret, ultimo_login, created_at, updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	return r.CreateTx(ctx, r.db, user)
}

// CreateTx creates a new user within a transaction and sets its generated ID.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO usuarios (tenant_id, username, email, senha_hash, nome, nivel_acesso,
		                      unidade_id, ativo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		user.TenantID, user.Username, user.Email, user.PasswordHash, user.Name, user.Role,
		user.UnitID, user.Active, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	err = uniqueViolation(err, domain.ErrUserAlreadyExists)
	return foreignKeyViolation(err, domain.ErrAccessLevelNotFound)
}

// GetByID retrieves a user by ID regardless of tenant.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDInTenant retrieves a user by ID only if it belongs to the tenant.
func (r *UsersRepository) GetByIDInTenant(ctx context.Context, tenantID, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1 AND tenant_id = $2`
	return scanUser(r.db.QueryRowContext(ctx, query, id, tenantID))
}

// GetByLogin retrieves a user of the tenant by username or email.
// Username matches are preferred when both could apply.
func (r *UsersRepository) GetByLogin(ctx context.Context, tenantID int64, identifier string) (*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM usuarios
		WHERE tenant_id = $1 AND (username = $2 OR email = LOWER($2))
		ORDER BY (username = $2) DESC
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, tenantID, identifier))
}

// ListByTenant returns the users of a tenant ordered by name.
func (r *UsersRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE tenant_id = $1 ORDER BY nome ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountActiveByTenantTx counts active users of a tenant. Used when enforcing
// the plan's user limit inside the creating transaction.
func (r *UsersRepository) CountActiveByTenantTx(ctx context.Context, q Querier, tenantID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usuarios WHERE tenant_id = $1 AND ativo`, tenantID,
	).Scan(&count)
	return count, err
}

// Update updates profile, role, unit and active flag of a user of the tenant.
func (r *UsersRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE usuarios
		SET email = $3, nome = $4, nivel_acesso = $5, unidade_id = $6, ativo = $7, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.TenantID, user.Email, user.Name, user.Role, user.UnitID, user.Active,
	)
	if err != nil {
		err = uniqueViolation(err, domain.ErrUserAlreadyExists)
		return foreignKeyViolation(err, domain.ErrAccessLevelNotFound)
	}
	return expectOneRow(result)
}

// UpdatePassword stores a new password hash.
func (r *UsersRepository) UpdatePassword(ctx context.Context, tenantID, userID int64, hash string) error {
	query := `
		UPDATE usuarios
		SET senha_hash = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, userID, tenantID, hash)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// UpdateLastLogin records a successful login.
func (r *UsersRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET ultimo_login = NOW() WHERE id = $1`, userID)
	return err
}

// SetTOTPSecret stores (or clears, when secret is nil) the encrypted TOTP secret.
func (r *UsersRepository) SetTOTPSecret(ctx context.Context, userID int64, secret *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET totp_secret = $2, updated_at = NOW() WHERE id = $1`, userID, secret)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// Deactivate soft-deletes a user of the tenant.
func (r *UsersRepository) Deactivate(ctx context.Context, tenantID, userID int64) error {
	query := `
		UPDATE usuarios
		SET ativo = FALSE, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, userID, tenantID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.TenantID, &user.Username, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.UnitID, &user.Active, &user.TOTPSecret, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
