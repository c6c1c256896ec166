package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/cras-gestao/gestao-suas/cmd/suas-admin/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		commands.Globals

		Migrate          commands.MigrateCmd          `cmd:"" help:"Apply the database schema"`
		CreateSuperAdmin commands.CreateSuperAdminCmd `cmd:"" help:"Create a platform administrator"`
		ResetPassword    commands.ResetPasswordCmd    `cmd:"" help:"Set a user's password"`
		SeedPermissions  commands.SeedPermissionsCmd  `cmd:"" help:"Upsert the permission matrix"`
		EnrollTotp       commands.EnrollTOTPCmd       `cmd:"" name:"enroll-totp" help:"Enroll a user in TOTP"`
		Version          kong.VersionFlag
	}
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("suas-admin"),
		kong.Description("Administrative tasks for Gestao SUAS."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	err := cmd.Run(&cli.Globals)
	cmd.FatalIfErrorf(err)
}
