package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const (
	// TOTP parameters
	totpPeriod = 30
	totpWindow = 1 // Allow ±30 seconds clock drift
)

// TOTPConfig contains configuration for the TOTP service.
type TOTPConfig struct {
	Issuer        string // e.g., "Gestao SUAS"
	EncryptionKey []byte // 32 bytes for AES-256
	Now           func() time.Time
}

// TOTPStore persists the encrypted TOTP secret of a user.
type TOTPStore interface {
	SetTOTPSecret(ctx context.Context, userID int64, secret *string) error
}

// TOTPEnrollment is returned once, when a user enrolls. Pending is the
// encrypted secret the client echoes back to Confirm.
type TOTPEnrollment struct {
	Secret        string `json:"secret"`
	URL           string `json:"url"`
	QRCodeDataURI string `json:"qrCode"`
	Pending       string `json:"pending"`
}

// TOTPService handles the optional second factor of privileged accounts.
type TOTPService struct {
	config TOTPConfig
	store  TOTPStore
}

// NewTOTPService creates a TOTP service.
func NewTOTPService(config TOTPConfig, store TOTPStore) (*TOTPService, error) {
	if len(config.EncryptionKey) != 32 {
		return nil, errors.New("totp encryption key must be 32 bytes")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TOTPService{config: config, store: store}, nil
}

// Enroll generates and stores a new secret for user, replacing any previous one.
func (s *TOTPService) Enroll(ctx context.Context, user *domain.User) (*TOTPEnrollment, error) {
	enrollment, err := s.Begin(user)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTOTPSecret(ctx, user.ID, &enrollment.Pending); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Begin generates a secret for user without storing it. The encrypted secret
// is returned in Pending and becomes active only through Confirm.
func (s *TOTPService) Begin(user *domain.User) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Username,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	encrypted, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	return &TOTPEnrollment{
		Secret:        key.Secret(),
		URL:           key.URL(),
		QRCodeDataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrBuf.Bytes()),
		Pending:       encrypted,
	}, nil
}

// Confirm activates a pending secret from Begin once code proves the user's
// authenticator holds it.
func (s *TOTPService) Confirm(ctx context.Context, userID int64, pending, code string) error {
	if pending == "" {
		return domain.ErrInvalidOTP
	}
	valid, err := s.Validate(&domain.User{TOTPSecret: &pending}, code)
	if err != nil {
		// A pending value that does not decrypt was not produced by Begin.
		return domain.ErrInvalidOTP
	}
	if !valid {
		return domain.ErrInvalidOTP
	}
	return s.store.SetTOTPSecret(ctx, userID, &pending)
}

// Disable removes the user's second factor.
func (s *TOTPService) Disable(ctx context.Context, userID int64) error {
	return s.store.SetTOTPSecret(ctx, userID, nil)
}

// Validate checks code against the user's enrolled secret.
func (s *TOTPService) Validate(user *domain.User, code string) (bool, error) {
	if !user.HasTOTP() {
		return false, nil
	}

	secret, err := s.decryptSecret(*user.TOTPSecret)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}

	valid, err := totp.ValidateCustom(code, secret, s.config.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpWindow,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Malformed codes are a failed attempt, not a server error.
		return false, nil
	}
	return valid, nil
}

// encryptSecret encrypts a plaintext secret using AES-256-GCM
func (s *TOTPService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts an encrypted secret using AES-256-GCM
func (s *TOTPService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
