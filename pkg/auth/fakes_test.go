package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

// memUsers is an in-memory SessionUserStore.
type memUsers struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{users: map[int64]*domain.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByLogin(_ context.Context, tenantID int64, identifier string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TenantID == tenantID && (u.Username == identifier || u.Email == NormalizeEmail(identifier)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) UpdateLastLogin(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, tenantID, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) SetTOTPSecret(_ context.Context, userID int64, secret *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TOTPSecret = secret
	return nil
}

// memTenants is an in-memory TenantStore counting lookups.
type memTenants struct {
	tenants map[string]*domain.Tenant
	calls   atomic.Int32
	delay   time.Duration
}

func newMemTenants(tenants ...*domain.Tenant) *memTenants {
	m := &memTenants{tenants: map[string]*domain.Tenant{}}
	for _, t := range tenants {
		m.tenants[t.Subdomain] = t
	}
	return m
}

func (m *memTenants) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := m.tenants[subdomain]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// memPermissions is an in-memory PermissionStore honoring tenant overrides.
type memPermissions struct {
	rows []*domain.Permission
	err  error
}

func (m *memPermissions) Find(_ context.Context, tenantID int64, role domain.Role, module string) (*domain.Permission, error) {
	if m.err != nil {
		return nil, m.err
	}
	var fallback *domain.Permission
	for _, p := range m.rows {
		if p.Role != role || p.Module != module {
			continue
		}
		if p.TenantID != nil && *p.TenantID == tenantID {
			return p, nil
		}
		if p.TenantID == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return nil, repository.ErrPermissionNotFound
	}
	return fallback, nil
}

func (m *memPermissions) ListEffective(ctx context.Context, tenantID int64, role domain.Role) ([]*domain.Permission, error) {
	if m.err != nil {
		return nil, m.err
	}
	seen := map[string]bool{}
	var out []*domain.Permission
	for _, p := range m.rows {
		if p.Role != role || seen[p.Module] {
			continue
		}
		row, err := m.Find(ctx, tenantID, role, p.Module)
		if err != nil {
			continue
		}
		seen[p.Module] = true
		out = append(out, row)
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")

func newTestTokens(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	tokens, err := NewTokenService(TokenConfig{
		Secret:     testSecret,
		Issuer:     "gestao-suas",
		AccessTTL:  8 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return tokens
}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(4, 2)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return h
}

func mustHash(t *testing.T, h *PasswordHasher, password string) string {
	t.Helper()
	hash, err := h.Hash(context.Background(), password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}
