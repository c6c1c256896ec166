package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

func TestDefaultPermissions(t *testing.T) {
	perms, err := DefaultPermissions()
	require.NoError(t, err)
	require.NotEmpty(t, perms)

	for _, p := range perms {
		assert.NotEqual(t, domain.RoleAdmin, p.Role, "admin bypasses the matrix")
		assert.NotEqual(t, domain.RoleSuperAdmin, p.Role, "super_admin bypasses the matrix")
		assert.Nil(t, p.TenantID)
	}

	var usuarios *domain.Permission
	for i := range perms {
		if perms[i].Role == domain.RoleCoordenador && perms[i].Module == "usuarios" {
			usuarios = &perms[i]
		}
	}
	require.NotNil(t, usuarios)
	assert.True(t, usuarios.Capabilities.View)
	assert.False(t, usuarios.Capabilities.Create)
	assert.True(t, usuarios.UnitRestricted)
}

func TestReadPermissions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantLen int
		wantErr string
	}{
		{
			name: "valid",
			yaml: `permissions:
  - role: tecnico
    module: familias
    capabilities: {view: true, create: true}
    unit_restricted: true`,
			wantLen: 1,
		},
		{name: "empty file", yaml: "", wantLen: 0},
		{
			name: "unknown role",
			yaml: `permissions:
  - role: gestor
    module: familias`,
			wantErr: "unknown role",
		},
		{
			name: "bad module code",
			yaml: `permissions:
  - role: tecnico
    module: Familias`,
			wantErr: "invalid module code",
		},
		{
			name: "unknown capability",
			yaml: `permissions:
  - role: tecnico
    module: familias
    capabilities: {approve: true}`,
			wantErr: "parse permission matrix",
		},
		{
			name: "duplicate row",
			yaml: `permissions:
  - {role: tecnico, module: familias}
  - {role: tecnico, module: familias}`,
			wantErr: "duplicate tecnico/familias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms, err := ReadPermissions(strings.NewReader(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, perms, tt.wantLen)
		})
	}
}

func TestSeedPermissions(t *testing.T) {
	ctx := context.Background()
	perms := []domain.Permission{
		{Role: domain.RoleTecnico, Module: "familias", Capabilities: domain.Capabilities{View: true}},
		{Role: domain.RoleOperador, Module: "familias", Capabilities: domain.Capabilities{View: true}},
	}

	t.Run("tenant override", func(t *testing.T) {
		db, mock := newMock(t)
		tenantID := int64(5)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id, nivel_acesso, modulo)")).
			WithArgs(int64(5), domain.RoleTecnico, "familias", true, false, false, false, false, false).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id, nivel_acesso, modulo)")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectCommit()

		require.NoError(t, SeedPermissions(ctx, db, &tenantID, perms))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Nil(t, perms[0].TenantID, "input rows are not modified")
	})

	t.Run("failure rolls back", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id IS NULL")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id IS NULL")).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := SeedPermissions(ctx, db, nil, perms)
		assert.ErrorContains(t, err, "upsert operador/familias")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
