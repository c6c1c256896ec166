package commands

import (
	"context"
	"fmt"

	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// CreateSuperAdminCmd creates a platform administrator in the system tenant.
type CreateSuperAdminCmd struct {
	Username string `help:"Login name" required:""`
	Email    string `help:"Email address" required:""`
	Name     string `help:"Display name" required:""`
	Password string `help:"Initial password" required:"" env:"SUPER_ADMIN_PASSWORD"`
}

func (c *CreateSuperAdminCmd) Run(ctx context.Context, g *Globals) error {
	logger := g.logger()
	db, err := g.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUsersRepository(db)
	sessions, err := g.sessionService(users, logger)
	if err != nil {
		return err
	}
	svc := auth.NewUserService(db, users, repository.NewTenantsRepository(db), sessions, logger)

	user, err := svc.Create(ctx, operator, auth.NewUserInput{
		Username: c.Username,
		Email:    c.Email,
		Name:     c.Name,
		Password: c.Password,
		Role:     domain.RoleSuperAdmin,
	})
	if err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	fmt.Fprintf(g.out(), "super admin %s created (id %d)\n", user.Username, user.ID)
	return nil
}

// ResetPasswordCmd sets a new password for any user.
type ResetPasswordCmd struct {
	TenantRef
	Username string `arg:"" help:"Username or email"`
	Password string `help:"New password" required:"" env:"NEW_PASSWORD"`
}

func (c *ResetPasswordCmd) Run(ctx context.Context, g *Globals) error {
	logger := g.logger()
	db, err := g.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tenantID, err := c.resolve(ctx, repository.NewTenantsRepository(db))
	if err != nil {
		return err
	}

	users := repository.NewUsersRepository(db)
	user, err := users.GetByLogin(ctx, tenantID, c.Username)
	if err != nil {
		return fmt.Errorf("find user %q: %w", c.Username, err)
	}

	sessions, err := g.sessionService(users, logger)
	if err != nil {
		return err
	}
	if err := sessions.ResetPassword(ctx, tenantID, user.ID, c.Password); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "password of %s reset\n", user.Username)
	return nil
}
