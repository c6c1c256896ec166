package commands

import (
	"context"
	"fmt"

	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// MigrateCmd applies the embedded schema and seeds the access levels.
type MigrateCmd struct {
	SeedPermissions bool `help:"Also upsert the default permission matrix" default:"true" negatable:""`
}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	db, err := g.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	fmt.Fprintln(g.out(), "schema applied")

	if !c.SeedPermissions {
		return nil
	}
	perms, err := repository.DefaultPermissions()
	if err != nil {
		return err
	}
	if err := repository.SeedPermissions(ctx, db, nil, perms); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "%d default permissions seeded\n", len(perms))
	return nil
}
