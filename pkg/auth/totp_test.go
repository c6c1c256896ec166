package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

func newTestTOTP(t *testing.T, store TOTPStore, now func() time.Time) *TOTPService {
	t.Helper()
	svc, err := NewTOTPService(TOTPConfig{Issuer: "Gestao SUAS", EncryptionKey: testSecret, Now: now}, store)
	require.NoError(t, err)
	return svc
}

func TestNewTOTPService_KeyLength(t *testing.T) {
	_, err := NewTOTPService(TOTPConfig{EncryptionKey: []byte("short")}, nil)
	assert.Error(t, err)
}

func TestTOTPService_SecretEncryption(t *testing.T) {
	svc := newTestTOTP(t, nil, nil)

	a, err := svc.encryptSecret("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	b, err := svc.encryptSecret("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must differ per encryption")
	assert.NotContains(t, a, "JBSWY3DPEHPK3PXP")

	plain, err := svc.decryptSecret(a)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plain)

	other, err := NewTOTPService(TOTPConfig{EncryptionKey: []byte("fedcba9876543210fedcba9876543210")}, nil)
	require.NoError(t, err)
	_, err = other.decryptSecret(a)
	assert.Error(t, err)
}

func TestTOTPService_EnrollValidateDisable(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	users := newMemUsers(&domain.User{ID: 1, TenantID: 0, Username: "root", Role: domain.RoleSuperAdmin, Active: true})
	svc := newTestTOTP(t, users, fixedClock(now))
	ctx := context.Background()

	user, _ := users.GetByID(ctx, 1)
	enrollment, err := svc.Enroll(ctx, user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enrollment.URL, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(enrollment.QRCodeDataURI, "data:image/png;base64,"))

	user, _ = users.GetByID(ctx, 1)
	require.True(t, user.HasTOTP())
	assert.NotEqual(t, enrollment.Secret, *user.TOTPSecret)

	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)
	valid, err := svc.Validate(user, code)
	require.NoError(t, err)
	assert.True(t, valid)

	stale, err := totp.GenerateCode(enrollment.Secret, now.Add(-5*time.Minute))
	require.NoError(t, err)
	valid, _ = svc.Validate(user, stale)
	assert.Equal(t, stale == code, valid)

	valid, err = svc.Validate(user, "abc")
	assert.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, svc.Disable(ctx, 1))
	user, _ = users.GetByID(ctx, 1)
	assert.False(t, user.HasTOTP())
}

func TestTOTPService_CorruptSecret(t *testing.T) {
	svc := newTestTOTP(t, nil, nil)
	garbage := "not-base64!"
	_, err := svc.Validate(&domain.User{TOTPSecret: &garbage}, "123456")
	assert.ErrorIs(t, err, domain.ErrCredential)
}

func TestTOTPService_BeginConfirm(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	users := newMemUsers(&domain.User{ID: 3, TenantID: 5, Username: "ana", Role: domain.RoleCoordenador, Active: true})
	svc := newTestTOTP(t, users, fixedClock(now))
	ctx := context.Background()

	user, _ := users.GetByID(ctx, 3)
	enrollment, err := svc.Begin(user)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Pending)

	user, _ = users.GetByID(ctx, 3)
	assert.False(t, user.HasTOTP(), "Begin must not store the secret")

	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	assert.ErrorIs(t, svc.Confirm(ctx, 3, enrollment.Pending, wrong), domain.ErrInvalidOTP)
	assert.ErrorIs(t, svc.Confirm(ctx, 3, "", code), domain.ErrInvalidOTP)
	assert.ErrorIs(t, svc.Confirm(ctx, 3, "not-base64!", code), domain.ErrInvalidOTP)
	user, _ = users.GetByID(ctx, 3)
	assert.False(t, user.HasTOTP())

	require.NoError(t, svc.Confirm(ctx, 3, enrollment.Pending, code))

	user, _ = users.GetByID(ctx, 3)
	require.True(t, user.HasTOTP())
	valid, err := svc.Validate(user, code)
	require.NoError(t, err)
	assert.True(t, valid)
}
