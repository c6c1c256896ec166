package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// SeedPermissionsCmd upserts a permission matrix.
type SeedPermissionsCmd struct {
	TenantRef
	File       string `help:"Matrix file (defaults to the embedded matrix)" type:"existingfile" xor:"source"`
	FromLegacy bool   `help:"Convert the free-form payloads stored on access levels" xor:"source"`
	DryRun     bool   `help:"Validate and print the rows without writing"`
}

func (c *SeedPermissionsCmd) Run(ctx context.Context, g *Globals) error {
	db, err := g.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	perms, err := c.load(ctx, repository.NewAccessLevelsRepository(db))
	if err != nil {
		return err
	}

	if c.DryRun {
		printPermissions(g, perms)
		return nil
	}

	var tenantID *int64
	if c.Tenant != "" {
		id, err := c.resolve(ctx, repository.NewTenantsRepository(db))
		if err != nil {
			return err
		}
		tenantID = &id
	}

	if err := repository.SeedPermissions(ctx, db, tenantID, perms); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "%d permissions seeded\n", len(perms))
	return nil
}

// AccessLevelLister lists access levels with their stored payloads.
type AccessLevelLister interface {
	List(ctx context.Context) ([]*domain.AccessLevel, error)
}

func (c *SeedPermissionsCmd) load(ctx context.Context, levels AccessLevelLister) ([]domain.Permission, error) {
	switch {
	case c.File != "":
		f, err := os.Open(c.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return repository.ReadPermissions(f)

	case c.FromLegacy:
		list, err := levels.List(ctx)
		if err != nil {
			return nil, err
		}
		var perms []domain.Permission
		for _, level := range list {
			parsed, err := level.ParsePayload()
			if err != nil {
				return nil, err
			}
			perms = append(perms, parsed...)
		}
		return perms, nil

	default:
		return repository.DefaultPermissions()
	}
}

func printPermissions(g *Globals, perms []domain.Permission) {
	for _, p := range perms {
		c := p.Capabilities
		fmt.Fprintf(g.out(), "%-13s %-18s view=%t create=%t edit=%t delete=%t export=%t unit=%t\n",
			p.Role, p.Module, c.View, c.Create, c.Edit, c.Delete, c.Export, p.UnitRestricted)
	}
}
