package repository

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

//go:embed permissions.yaml
var defaultPermissionsYAML []byte

type permissionSeed struct {
	Permissions []permissionSeedEntry `yaml:"permissions"`
}

type permissionSeedEntry struct {
	Role           domain.Role         `yaml:"role"`
	Module         string              `yaml:"module"`
	Capabilities   domain.Capabilities `yaml:"capabilities"`
	UnitRestricted bool                `yaml:"unit_restricted"`
}

// DefaultPermissions returns the embedded default permission matrix.
func DefaultPermissions() ([]domain.Permission, error) {
	return parsePermissionSeed(defaultPermissionsYAML)
}

// ReadPermissions parses a permission matrix file. Unknown keys are rejected.
func ReadPermissions(r io.Reader) ([]domain.Permission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parsePermissionSeed(data)
}

func parsePermissionSeed(data []byte) ([]domain.Permission, error) {
	var seed permissionSeed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse permission matrix: %w", err)
	}

	type key struct {
		role   domain.Role
		module string
	}
	seen := make(map[key]bool, len(seed.Permissions))
	perms := make([]domain.Permission, 0, len(seed.Permissions))
	for i, e := range seed.Permissions {
		p := domain.Permission{
			Role:           e.Role,
			Module:         e.Module,
			Capabilities:   e.Capabilities,
			UnitRestricted: e.UnitRestricted,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("permission matrix entry %d: %w", i+1, err)
		}
		k := key{p.Role, p.Module}
		if seen[k] {
			return nil, fmt.Errorf("permission matrix entry %d: duplicate %s/%s", i+1, p.Role, p.Module)
		}
		seen[k] = true
		perms = append(perms, p)
	}
	return perms, nil
}

// SeedPermissions upserts perms in a single transaction. tenantID nil writes
// the platform defaults; otherwise the rows become overrides of that tenant.
func SeedPermissions(ctx context.Context, db *sql.DB, tenantID *int64, perms []domain.Permission) error {
	repo := NewPermissionsRepository(db)
	return Tx(ctx, db, func(tx *sql.Tx) error {
		for i := range perms {
			p := perms[i]
			p.TenantID = tenantID
			if err := repo.UpsertTx(ctx, tx, &p); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", p.Role, p.Module, err)
			}
		}
		return nil
	})
}
