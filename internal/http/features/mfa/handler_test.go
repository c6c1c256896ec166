package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cras-gestao/gestao-suas/internal/http/middleware"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const testPassword = "Senha@2026"

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*domain.User
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

func (m *memUsers) GetByLogin(context.Context, int64, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) UpdateLastLogin(context.Context, int64) error { return nil }

func (m *memUsers) UpdatePassword(context.Context, int64, int64, string) error { return nil }

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

type fixture struct {
	router http.Handler
	users  *memUsers
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	users := &memUsers{users: map[int64]*domain.User{
		10: {ID: 10, TenantID: 5, Username: "ana", PasswordHash: string(hash), Role: domain.RoleCoordenador, Active: true},
	}}

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	totpService, err := auth.NewTOTPService(auth.TOTPConfig{
		Issuer:        "Gestao SUAS",
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		Now:           func() time.Time { return now },
	}, users)
	require.NoError(t, err)
	sessions := auth.NewSessionService(auth.SessionDeps{Users: users, Hasher: hasher, Logger: logger})

	h := NewHandler(logger, totpService, sessions)
	principal := &domain.Principal{UserID: 10, TenantID: 5, Username: "ana", Role: domain.RoleCoordenador}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithSession(r.Context(), &auth.Session{Principal: principal})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)

	return &fixture{router: r, users: users, now: now}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func (f *fixture) enabled(t *testing.T) bool {
	t.Helper()
	w := f.do(t, http.MethodGet, "/v1/me/totp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Enabled
}

func (f *fixture) enroll(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/me/totp/setup", SetupRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var enrollment auth.TOTPEnrollment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enrollment))

	code, err := totp.GenerateCode(enrollment.Secret, f.now)
	require.NoError(t, err)
	w = f.do(t, http.MethodPost, "/v1/me/totp/enable", EnableRequest{Pending: enrollment.Pending, Code: code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return enrollment.Secret
}

func TestSetupAndEnable(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.enabled(t))

	w := f.do(t, http.MethodPost, "/v1/me/totp/setup", SetupRequest{Password: "errada"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/v1/me/totp/setup", SetupRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var enrollment auth.TOTPEnrollment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enrollment))
	assert.NotEmpty(t, enrollment.QRCodeDataURI)
	assert.False(t, f.enabled(t), "setup alone must not enable the factor")

	code, err := totp.GenerateCode(enrollment.Secret, f.now)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = f.do(t, http.MethodPost, "/v1/me/totp/enable", EnableRequest{Pending: enrollment.Pending, Code: wrong})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_otp")

	w = f.do(t, http.MethodPost, "/v1/me/totp/enable", EnableRequest{Pending: enrollment.Pending, Code: code})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.enabled(t))
}

func TestSetupWhenEnrolledRequiresCurrentCode(t *testing.T) {
	f := newFixture(t)
	secret := f.enroll(t)

	w := f.do(t, http.MethodPost, "/v1/me/totp/setup", SetupRequest{Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "mfa_required")

	code, err := totp.GenerateCode(secret, f.now)
	require.NoError(t, err)
	w = f.do(t, http.MethodPost, "/v1/me/totp/setup", SetupRequest{Password: testPassword, Code: code})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisable(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/me/totp/disable", DisableRequest{Password: testPassword})
	assert.Equal(t, http.StatusOK, w.Code, "disabling without a factor is a no-op")

	secret := f.enroll(t)
	code, err := totp.GenerateCode(secret, f.now)
	require.NoError(t, err)

	w = f.do(t, http.MethodPost, "/v1/me/totp/disable", DisableRequest{Password: "errada", Code: code})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, f.enabled(t))

	w = f.do(t, http.MethodPost, "/v1/me/totp/disable", DisableRequest{Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, f.enabled(t))

	w = f.do(t, http.MethodPost, "/v1/me/totp/disable", DisableRequest{Password: testPassword, Code: code})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.enabled(t))
}

func TestRequiresPrincipal(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
	w := httptest.NewRecorder()
	h.Setup(w, httptest.NewRequest(http.MethodPost, "/v1/me/totp/setup", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
