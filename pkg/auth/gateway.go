package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// PrincipalStore loads users by id.
type PrincipalStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Session is the authenticated context attached to a request.
type Session struct {
	Principal *domain.Principal
	Tenant    *domain.Tenant // nil on tenant-exempt routes
	Claims    *Claims
}

// Gateway authenticates requests. Every protected route goes through
// Authenticate, which is where cross-tenant tokens are rejected.
type Gateway struct {
	tokens  *TokenService
	users   PrincipalStore
	revoker Revoker
	logger  *slog.Logger
}

// NewGateway creates an auth gateway. A nil revoker disables the denylist.
func NewGateway(tokens *TokenService, users PrincipalStore, revoker Revoker, logger *slog.Logger) *Gateway {
	if revoker == nil {
		revoker = NopRevoker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{tokens: tokens, users: users, revoker: revoker, logger: logger}
}

// Authenticate verifies the Authorization header value against the resolved
// tenant. A nil tenant marks a tenant-exempt route, which only accepts tokens
// of the system tenant.
func (g *Gateway) Authenticate(ctx context.Context, tenant *domain.Tenant, authorization string) (*Session, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := g.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		g.logger.Warn("revocation check failed, allowing token", "error", err, "user_id", claims.UserID)
	} else if revoked {
		return nil, domain.ErrSessionExpired
	}

	user, err := bindPrincipal(ctx, g.users, claims, tenant)
	if err != nil {
		return nil, err
	}

	return &Session{
		Principal: user.Principal(),
		Tenant:    tenant,
		Claims:    claims,
	}, nil
}

// bindPrincipal loads the user named by claims and checks that token, user and
// resolved tenant agree. A nil tenant stands for the system tenant.
func bindPrincipal(ctx context.Context, users PrincipalStore, claims *Claims, tenant *domain.Tenant) (*domain.User, error) {
	expectedTenant := domain.SystemTenantID
	if tenant != nil {
		expectedTenant = tenant.ID
		if claims.TenantID != nil && *claims.TenantID != tenant.ID {
			return nil, domain.ErrTenantMismatch
		}
	} else if claims.TenantID == nil || *claims.TenantID != domain.SystemTenantID {
		return nil, domain.ErrTenantMismatch
	}

	user, err := users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrPrincipalInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load principal: %w", err)
	}
	if !user.Active || user.TenantID != expectedTenant {
		return nil, domain.ErrPrincipalInvalid
	}
	return user, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
