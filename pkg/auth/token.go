package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// Default token lifetimes
const (
	DefaultAccessTokenTTL  = 8 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the signed session payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64       `json:"uid"`
	TenantID *int64      `json:"tid,omitempty"`
	Role     domain.Role `json:"role"`
	Type     TokenType   `json:"typ"`
}

// TokenConfig holds token service configuration.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration // zero disables refresh tokens
	Now        func() time.Time
}

// IssuedToken is a signed token together with the claims it carries.
type IssuedToken struct {
	Token  string
	Claims *Claims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a token service.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if config.AccessTTL == 0 {
		config.AccessTTL = DefaultAccessTokenTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TokenService{config: config}, nil
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTTL
}

// RefreshEnabled reports whether refresh tokens are issued.
func (s *TokenService) RefreshEnabled() bool {
	return s.config.RefreshTTL > 0
}

// Issue signs an access token for the principal.
func (s *TokenService) Issue(p *domain.Principal) (*IssuedToken, error) {
	return s.issue(p, TokenTypeAccess, s.config.AccessTTL)
}

// IssueRefresh signs a refresh token for the principal.
func (s *TokenService) IssueRefresh(p *domain.Principal) (*IssuedToken, error) {
	if !s.RefreshEnabled() {
		return nil, errors.New("refresh tokens are disabled")
	}
	return s.issue(p, TokenTypeRefresh, s.config.RefreshTTL)
}

func (s *TokenService) issue(p *domain.Principal, typ TokenType, ttl time.Duration) (*IssuedToken, error) {
	now := s.config.Now()
	tenantID := p.TenantID
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:   p.UserID,
		TenantID: &tenantID,
		Role:     p.Role,
		Type:     typ,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: token, Claims: claims}, nil
}

// Verify validates an access token and returns its claims.
func (s *TokenService) Verify(token string) (*Claims, error) {
	return s.verify(token, TokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, TokenTypeRefresh)
}

func (s *TokenService) verify(tokenString string, want TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.config.Now),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return s.config.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != want || claims.UserID <= 0 {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
