package commands

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cras-gestao/gestao-suas/internal/config"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// Globals holds the flags shared by every command.
type Globals struct {
	Debug bool      `help:"Enable debug logging."`
	Out   io.Writer `kong:"-"`

	DBHost     string `help:"Database host" env:"DB_HOST" default:"localhost"`
	DBPort     int    `help:"Database port" env:"DB_PORT" default:"5432"`
	DBUser     string `help:"Database user" env:"DB_USER" default:"postgres"`
	DBPassword string `help:"Database password" env:"DB_PASSWORD" default:"postgres"`
	DBName     string `help:"Database name" env:"DB_NAME" default:"gestao_suas"`
	DBSSLMode  string `help:"Database sslmode" env:"DB_SSLMODE" default:"disable"`

	BcryptCost        int `help:"bcrypt cost for new passwords" env:"BCRYPT_COST" default:"10"`
	PasswordMinLength int `help:"Minimum password length" env:"PASSWORD_MIN_LENGTH" default:"8"`
}

func (g *Globals) logger() *slog.Logger {
	level := slog.LevelInfo
	if g.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) openDB(ctx context.Context) (*sql.DB, error) {
	return repository.NewDB(ctx, repository.Config{
		Host:           g.DBHost,
		Port:           g.DBPort,
		User:           g.DBUser,
		Password:       g.DBPassword,
		DBName:         g.DBName,
		SSLMode:        g.DBSSLMode,
		MaxOpenConns:   2,
		ConnectTimeout: 10 * time.Second,
	})
}

func (g *Globals) sessionService(users *repository.UsersRepository, logger *slog.Logger) (*auth.SessionService, error) {
	hasher, err := auth.NewPasswordHasher(g.BcryptCost, 1)
	if err != nil {
		return nil, err
	}
	return auth.NewSessionService(auth.SessionDeps{
		Users:  users,
		Hasher: hasher,
		Policy: auth.NewPasswordPolicy(config.PasswordPolicyConfig{MinLength: g.PasswordMinLength}),
		Logger: logger,
	}), nil
}

// operator is the principal the CLI acts as. It holds the system tenant's
// highest role, so it may assign any role there.
var operator = &domain.Principal{TenantID: domain.SystemTenantID, Role: domain.RoleSuperAdmin}

// TenantRef selects a tenant by subdomain; empty means the system tenant.
type TenantRef struct {
	Tenant string `help:"Tenant subdomain (omit for the system tenant)" short:"t"`
}

// TenantStore looks tenants up by subdomain.
type TenantStore interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

func (r TenantRef) resolve(ctx context.Context, store TenantStore) (int64, error) {
	if r.Tenant == "" {
		return domain.SystemTenantID, nil
	}
	tenant, err := store.GetBySubdomain(ctx, auth.NormalizeSubdomain(r.Tenant))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return 0, fmt.Errorf("tenant %q not found", r.Tenant)
		}
		return 0, err
	}
	return tenant.ID, nil
}

// decodeTOTPKey parses the hex TOTP encryption key used by the API server.
func decodeTOTPKey(key string) ([]byte, error) {
	decoded, err := hex.DecodeString(key)
	if err != nil || len(decoded) != 32 {
		return nil, errors.New("TOTP_ENCRYPTION_KEY must be 64 hex characters")
	}
	return decoded, nil
}
