package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

var tenantRowColumns = []string{
	"id", "subdominio", "nome", "email_contato", "status", "plano", "limite_usuarios",
	"data_expiracao", "created_at", "updated_at",
}

func TestTenantsRepository_GetBySubdomain(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 5)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTenantsRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM tenants WHERE subdominio = \\$1").
			WithArgs("recife").
			WillReturnRows(sqlmock.NewRows(tenantRowColumns).
				AddRow(int64(3), "recife", "Prefeitura do Recife", "suas@recife.pe.gov.br", "trial", "basico", 10, expires, now, now))

		tenant, err := repo.GetBySubdomain(ctx, "recife")
		require.NoError(t, err)
		assert.Equal(t, int64(3), tenant.ID)
		assert.Equal(t, domain.TenantStatusTrial, tenant.Status)
		require.NotNil(t, tenant.ExpiresAt)
		assert.True(t, tenant.ExpiresAt.Equal(expires))
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTenantsRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM tenants").
			WithArgs("nowhere").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetBySubdomain(ctx, "nowhere")
		assert.ErrorIs(t, err, domain.ErrTenantNotFound)
	})
}

func TestTenantsRepository_CreateDuplicateSubdomain(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTenantsRepository(db)

	mock.ExpectQuery("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_subdominio_key"})

	err := repo.Create(context.Background(), &domain.Tenant{Subdomain: "recife", Name: "Recife"})
	assert.ErrorIs(t, err, domain.ErrSubdomainTaken)
}

func TestTenantsRepository_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTenantsRepository(db)

	mock.ExpectExec("UPDATE tenants").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Tenant{ID: 99, Status: domain.TenantStatusActive})
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}
