package commands

import (
	"context"
	"fmt"

	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// EnrollTOTPCmd enrolls a user in the TOTP second factor, or removes it.
type EnrollTOTPCmd struct {
	TenantRef
	Username      string `arg:"" help:"Username or email"`
	EncryptionKey string `help:"Hex TOTP encryption key" required:"" env:"TOTP_ENCRYPTION_KEY"`
	Issuer        string `help:"Issuer shown in authenticator apps" env:"TOTP_ISSUER" default:"Gestao SUAS"`
	Disable       bool   `help:"Remove the second factor instead"`
}

func (c *EnrollTOTPCmd) Run(ctx context.Context, g *Globals) error {
	key, err := decodeTOTPKey(c.EncryptionKey)
	if err != nil {
		return err
	}

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

	svc, err := auth.NewTOTPService(auth.TOTPConfig{Issuer: c.Issuer, EncryptionKey: key}, users)
	if err != nil {
		return err
	}

	if c.Disable {
		if err := svc.Disable(ctx, user.ID); err != nil {
			return err
		}
		fmt.Fprintf(g.out(), "TOTP removed from %s\n", user.Username)
		return nil
	}

	enrollment, err := svc.Enroll(ctx, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "secret: %s\nurl:    %s\n", enrollment.Secret, enrollment.URL)
	return nil
}
