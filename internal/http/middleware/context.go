package middleware

import (
	"context"

	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

type contextKey string

const (
	// TenantKey is the context key for the resolved tenant.
	TenantKey contextKey = "tenant"
	// SessionKey is the context key for the authenticated session.
	SessionKey contextKey = "session"
	// GrantKey is the context key for the grant checked by RequirePermission.
	GrantKey contextKey = "grant"
	// RequestIDKey is the context key for the request id.
	RequestIDKey contextKey = "request_id"
)

// WithTenant returns a copy of ctx carrying tenant.
func WithTenant(ctx context.Context, tenant *domain.Tenant) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetTenant extracts the resolved tenant from the request context.
func GetTenant(ctx context.Context) (*domain.Tenant, bool) {
	tenant, ok := ctx.Value(TenantKey).(*domain.Tenant)
	return tenant, ok && tenant != nil
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

// GetSession extracts the authenticated session from the request context.
func GetSession(ctx context.Context) (*auth.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*auth.Session)
	return sess, ok && sess != nil
}

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) (*domain.Principal, bool) {
	sess, ok := GetSession(ctx)
	if !ok {
		return nil, false
	}
	return sess.Principal, true
}

// GetGrant extracts the module grant checked for this request.
func GetGrant(ctx context.Context) (domain.Grant, bool) {
	grant, ok := ctx.Value(GrantKey).(domain.Grant)
	return grant, ok
}

// GetRequestID extracts the request id.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
