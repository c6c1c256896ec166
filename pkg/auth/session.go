package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// SessionUserStore is the user persistence the session lifecycle needs.
type SessionUserStore interface {
	PrincipalStore
	GetByLogin(ctx context.Context, tenantID int64, identifier string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, tenantID, userID int64, hash string) error
}

// SessionDeps wires the session service.
type SessionDeps struct {
	Users       SessionUserStore
	Hasher      *PasswordHasher
	Tokens      *TokenService
	Permissions *PermissionEvaluator
	Policy      *PasswordPolicy
	Revoker     Revoker      // optional
	Limiter     LoginLimiter // optional
	TOTP        *TOTPService // optional
	Logger      *slog.Logger
}

// SessionService handles login, refresh, logout and password changes.
type SessionService struct {
	users   SessionUserStore
	hasher  *PasswordHasher
	tokens  *TokenService
	perms   *PermissionEvaluator
	policy  *PasswordPolicy
	revoker Revoker
	limiter LoginLimiter
	totp    *TOTPService
	logger  *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(deps SessionDeps) *SessionService {
	if deps.Revoker == nil {
		deps.Revoker = NopRevoker{}
	}
	if deps.Limiter == nil {
		deps.Limiter = NopLoginLimiter{}
	}
	if deps.Policy == nil {
		deps.Policy = &PasswordPolicy{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SessionService{
		users:   deps.Users,
		hasher:  deps.Hasher,
		tokens:  deps.Tokens,
		perms:   deps.Permissions,
		policy:  deps.Policy,
		revoker: deps.Revoker,
		limiter: deps.Limiter,
		totp:    deps.TOTP,
		logger:  deps.Logger,
	}
}

// LoginInput holds login credentials. A nil Tenant logs into the system tenant.
type LoginInput struct {
	Identifier string
	Password   string
	OTP        string
	Tenant     *domain.Tenant
	IP         string
}

// LoginResult is a successful login.
type LoginResult struct {
	Principal   *domain.Principal
	Access      *IssuedToken
	Refresh     *IssuedToken // nil when refresh tokens are disabled
	Permissions []string
	Tenant      *domain.Tenant
}

// Login authenticates by username or email within the tenant. Unknown users,
// wrong passwords and inactive accounts all fail with ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	tenantID := domain.SystemTenantID
	if in.Tenant != nil {
		tenantID = in.Tenant.ID
	}

	key := LoginLimiterKey(tenantID, identifier, in.IP)
	blocked, err := s.limiter.Blocked(ctx, key)
	if err != nil {
		s.logger.Warn("login limiter unavailable, allowing attempt", "error", err)
	} else if blocked {
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.GetByLogin(ctx, tenantID, identifier)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.DummyVerify(ctx, in.Password)
		return nil, s.failLogin(ctx, key, tenantID, "unknown_user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.failLogin(ctx, key, tenantID, "bad_password")
	}
	if !user.Active {
		return nil, s.failLogin(ctx, key, tenantID, "inactive")
	}

	if user.HasTOTP() {
		if s.totp == nil {
			return nil, fmt.Errorf("%w: user enrolled in TOTP but no key configured", domain.ErrCredential)
		}
		if in.OTP == "" {
			return nil, domain.ErrMFARequired
		}
		valid, err := s.totp.Validate(user, in.OTP)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, s.failLogin(ctx, key, tenantID, "bad_otp")
		}
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("failed to reset login limiter", "error", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", "error", err, "user_id", user.ID)
	}

	result, err := s.issue(ctx, user.Principal())
	if err != nil {
		return nil, err
	}
	result.Tenant = in.Tenant

	s.logger.Info("login succeeded", "user_id", user.ID, "tenant_id", tenantID, "role", user.Role)
	return result, nil
}

func (s *SessionService) failLogin(ctx context.Context, key string, tenantID int64, reason string) error {
	if err := s.limiter.Fail(ctx, key); err != nil {
		s.logger.Warn("failed to record login failure", "error", err)
	}
	s.logger.Info("login failed", "tenant_id", tenantID, "reason", reason)
	return domain.ErrInvalidCredentials
}

func (s *SessionService) issue(ctx context.Context, p *domain.Principal) (*LoginResult, error) {
	access, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}

	var refresh *IssuedToken
	if s.tokens.RefreshEnabled() {
		if refresh, err = s.tokens.IssueRefresh(p); err != nil {
			return nil, err
		}
	}

	modules, err := s.perms.ViewableModules(ctx, p)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Principal:   p,
		Access:      access,
		Refresh:     refresh,
		Permissions: modules,
	}, nil
}

// SessionInfo describes the current session to the client.
type SessionInfo struct {
	UserID      int64       `json:"userId"`
	TenantID    int64       `json:"tenantId"`
	Username    string      `json:"username"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	UnitID      *int64      `json:"unit,omitempty"`
	Permissions []string    `json:"permissions"`
}

// Verify returns the session descriptor of an authenticated principal.
func (s *SessionService) Verify(ctx context.Context, p *domain.Principal) (*SessionInfo, error) {
	modules, err := s.perms.ViewableModules(ctx, p)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		UserID:      p.UserID,
		TenantID:    p.TenantID,
		Username:    p.Username,
		Name:        p.Name,
		Email:       p.Email,
		Role:        p.Role,
		UnitID:      p.UnitID,
		Permissions: modules,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The principal is
// reloaded, so deactivated users and role changes take effect.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, tenant *domain.Tenant) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Warn("revocation check failed, allowing token", "error", err, "user_id", claims.UserID)
	} else if revoked {
		return nil, domain.ErrSessionExpired
	}

	user, err := bindPrincipal(ctx, s.users, claims, tenant)
	if err != nil {
		return nil, err
	}

	p := user.Principal()
	access, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	modules, err := s.perms.ViewableModules(ctx, p)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Principal: p, Access: access, Permissions: modules, Tenant: tenant}, nil
}

// Logout revokes the session's access token and, when given, the matching
// refresh token. Without a denylist this only records the event.
func (s *SessionService) Logout(ctx context.Context, sess *Session, refreshToken string) error {
	if err := s.revoker.Revoke(ctx, sess.Claims.ID, sess.Claims.ExpiresAt.Time); err != nil {
		return err
	}

	if refreshToken != "" {
		claims, err := s.tokens.VerifyRefresh(refreshToken)
		if err == nil && claims.UserID == sess.Principal.UserID {
			if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				return err
			}
		}
	}

	s.logger.Info("logout", "user_id", sess.Principal.UserID, "tenant_id", sess.Principal.TenantID)
	return nil
}

// CurrentUser loads the user behind p.
func (s *SessionService) CurrentUser(ctx context.Context, p *domain.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrPrincipalInvalid
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CheckPassword loads the user behind p and verifies password against it.
func (s *SessionService) CheckPassword(ctx context.Context, p *domain.Principal, password string) (*domain.User, error) {
	user, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the principal's password after checking the current one.
// Tokens issued before the change remain valid until they expire.
func (s *SessionService) ChangePassword(ctx context.Context, p *domain.Principal, current, next string) error {
	user, err := s.CheckPassword(ctx, p, current)
	if err != nil {
		return err
	}
	if current == next {
		return &domain.PolicyError{Reason: "new password must differ from the current one"}
	}

	if err := s.setPassword(ctx, user.TenantID, user.ID, next); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", user.ID, "tenant_id", user.TenantID)
	return nil
}

// ResetPassword sets a user's password administratively.
func (s *SessionService) ResetPassword(ctx context.Context, tenantID, userID int64, next string) error {
	if err := s.setPassword(ctx, tenantID, userID, next); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", userID, "tenant_id", tenantID)
	return nil
}

// HashNewPassword validates plaintext against the policy and hashes it.
func (s *SessionService) HashNewPassword(ctx context.Context, plaintext string) (string, error) {
	if err := s.policy.ValidatePassword(plaintext); err != nil {
		return "", err
	}
	return s.hasher.Hash(ctx, plaintext)
}

func (s *SessionService) setPassword(ctx context.Context, tenantID, userID int64, plaintext string) error {
	hash, err := s.HashNewPassword(ctx, plaintext)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, tenantID, userID, hash)
}
