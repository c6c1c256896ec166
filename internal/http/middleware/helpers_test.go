package middleware

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type userStore map[int64]*domain.User

func (s userStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

var (
	tenantRecife   = &domain.Tenant{ID: 5, Subdomain: "recife", Status: domain.TenantStatusActive}
	tenantPaulista = &domain.Tenant{ID: 7, Subdomain: "paulista", Status: domain.TenantStatusActive}

	maria = &domain.User{ID: 10, TenantID: 5, Username: "maria", Role: domain.RoleTecnico, Active: true}
	joao  = &domain.User{ID: 12, TenantID: 7, Username: "joao", Role: domain.RoleAdmin, Active: true}
	root  = &domain.User{ID: 1, TenantID: domain.SystemTenantID, Username: "root", Role: domain.RoleSuperAdmin, Active: true}
)

func newTestGateway(t *testing.T) (*auth.Gateway, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "test",
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	users := userStore{maria.ID: maria, joao.ID: joao, root.ID: root}
	return auth.NewGateway(tokens, users, nil, discardLogger()), tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, u *domain.User) string {
	t.Helper()
	issued, err := tokens.Issue(u.Principal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return "Bearer " + issued.Token
}

// fakeResolver resolves hosts from a fixed table.
type fakeResolver struct {
	results map[string]*auth.Resolution
	errs    map[string]error
	calls   atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, host string) (*auth.Resolution, error) {
	f.calls.Add(1)
	if err, ok := f.errs[host]; ok {
		return nil, err
	}
	if res, ok := f.results[host]; ok {
		return res, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (f *fakeResolver) IsMarketingHost(host string) bool {
	return host == "gestaosuas.com.br" || host == "www.gestaosuas.com.br"
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		results: map[string]*auth.Resolution{
			"recife.gestaosuas.com.br":   {Tenant: tenantRecife, DaysRemaining: -1},
			"paulista.gestaosuas.com.br": {Tenant: tenantPaulista, NearExpiry: true, DaysRemaining: 3},
		},
		errs: map[string]error{
			"gestaosuas.com.br":          domain.ErrSignupRedirect,
			"suspenso.gestaosuas.com.br": domain.ErrTenantSuspended,
			"vencido.gestaosuas.com.br":  &domain.TenantExpiredError{Subdomain: "vencido", DaysOverdue: 2},
		},
	}
}

// countingAuthenticator records whether the gateway was reached.
type countingAuthenticator struct {
	calls atomic.Int32
	next  Authenticator
}

func (c *countingAuthenticator) Authenticate(ctx context.Context, tenant *domain.Tenant, authorization string) (*auth.Session, error) {
	c.calls.Add(1)
	return c.next.Authenticate(ctx, tenant, authorization)
}
