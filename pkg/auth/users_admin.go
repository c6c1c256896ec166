package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// NewUserInput is an account to be created inside a tenant.
type NewUserInput struct {
	Username string
	Email    string
	Name     string
	Password string
	Role     domain.Role
	UnitID   *int64
}

// UserService administers the users of one tenant on behalf of a principal.
// Every operation is scoped to the principal's tenant.
type UserService struct {
	db       *sql.DB
	users    *repository.UsersRepository
	tenants  *repository.TenantsRepository
	sessions *SessionService
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a user administration service.
func NewUserService(
	db *sql.DB,
	users *repository.UsersRepository,
	tenants *repository.TenantsRepository,
	sessions *SessionService,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		db:       db,
		users:    users,
		tenants:  tenants,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns the users of the actor's tenant.
func (s *UserService) List(ctx context.Context, actor *domain.Principal) ([]*domain.User, error) {
	return s.users.ListByTenant(ctx, actor.TenantID)
}

// Get returns one user of the actor's tenant.
func (s *UserService) Get(ctx context.Context, actor *domain.Principal, id int64) (*domain.User, error) {
	return s.users.GetByIDInTenant(ctx, actor.TenantID, id)
}

// Create adds a user to the actor's tenant. The tenant's user limit is
// checked under a row lock so concurrent creations cannot overshoot it.
func (s *UserService) Create(ctx context.Context, actor *domain.Principal, in NewUserInput) (*domain.User, error) {
	if err := checkAssignable(actor, in.Role); err != nil {
		return nil, err
	}

	user, err := buildUser(ctx, s.sessions, in, s.now().UTC())
	if err != nil {
		return nil, err
	}
	user.TenantID = actor.TenantID

	err = repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		limit, err := s.tenants.LockUserLimitTx(ctx, tx, actor.TenantID)
		if err != nil {
			return err
		}
		if limit > 0 {
			active, err := s.users.CountActiveByTenantTx(ctx, tx, actor.TenantID)
			if err != nil {
				return err
			}
			if active >= limit {
				return domain.ErrUserLimitReached
			}
		}
		return s.users.CreateTx(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		"tenant_id", user.TenantID,
		"user_id", user.ID,
		"role", user.Role,
		"by", actor.UserID,
	)
	return user, nil
}

// UserPatch lists the user attributes that may change. Nil fields are left untouched.
type UserPatch struct {
	Email     *string
	Name      *string
	Role      *domain.Role
	UnitID    *int64
	ClearUnit bool
	Active    *bool
}

// Update changes a user of the actor's tenant.
func (s *UserService) Update(ctx context.Context, actor *domain.Principal, grant domain.Grant, id int64, patch UserPatch) (*domain.User, error) {
	user, err := s.target(ctx, actor, grant, id)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil {
		email, err := ParseEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	if patch.Name != nil {
		name := SanitizeName(*patch.Name)
		if err := ValidateStringLength("name", name, 2, 200); err != nil {
			return nil, err
		}
		user.Name = name
	}
	if patch.Role != nil && *patch.Role != user.Role {
		if err := checkAssignable(actor, *patch.Role); err != nil {
			return nil, err
		}
		if user.ID == actor.UserID {
			return nil, fmt.Errorf("%w: users cannot change their own role", domain.ErrInvalidInput)
		}
		user.Role = *patch.Role
	}
	if patch.ClearUnit {
		user.UnitID = nil
	} else if patch.UnitID != nil {
		user.UnitID = patch.UnitID
	}
	if unitBound(actor, grant) && !actor.SharesUnit(user.UnitID) {
		return nil, fmt.Errorf("%w: users can only be kept in your own unit", domain.ErrPermissionDenied)
	}
	if patch.Active != nil && *patch.Active != user.Active {
		if !*patch.Active && user.ID == actor.UserID {
			return nil, fmt.Errorf("%w: users cannot deactivate themselves", domain.ErrInvalidInput)
		}
		if *patch.Active {
			if err := s.checkLimit(ctx, actor.TenantID); err != nil {
				return nil, err
			}
		}
		user.Active = *patch.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user updated", "tenant_id", user.TenantID, "user_id", user.ID, "by", actor.UserID)
	return user, nil
}

// ResetPassword sets a new password for a user of the actor's tenant.
func (s *UserService) ResetPassword(ctx context.Context, actor *domain.Principal, grant domain.Grant, id int64, password string) error {
	user, err := s.target(ctx, actor, grant, id)
	if err != nil {
		return err
	}
	return s.sessions.ResetPassword(ctx, user.TenantID, user.ID, password)
}

// Deactivate soft-deletes a user of the actor's tenant.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.Principal, grant domain.Grant, id int64) error {
	user, err := s.target(ctx, actor, grant, id)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID {
		return fmt.Errorf("%w: users cannot deactivate themselves", domain.ErrInvalidInput)
	}
	if err := s.users.Deactivate(ctx, user.TenantID, user.ID); err != nil {
		return err
	}
	s.logger.Info("user deactivated", "tenant_id", user.TenantID, "user_id", user.ID, "by", actor.UserID)
	return nil
}

// target loads a user the actor is allowed to manage. Users of another tenant,
// or of another unit when the grant is unit restricted, are reported as not
// found.
func (s *UserService) target(ctx context.Context, actor *domain.Principal, grant domain.Grant, id int64) (*domain.User, error) {
	user, err := s.users.GetByIDInTenant(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if unitBound(actor, grant) && !actor.SharesUnit(user.UnitID) {
		return nil, domain.ErrUserNotFound
	}
	if !actor.IsAdministrator() && user.Role.Outranks(actor.Role) {
		return nil, domain.ErrPermissionDenied
	}
	return user, nil
}

func unitBound(actor *domain.Principal, grant domain.Grant) bool {
	return grant.UnitRestricted && !actor.IsAdministrator()
}

func (s *UserService) checkLimit(ctx context.Context, tenantID int64) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.MaxUsers <= 0 {
		return nil
	}
	active, err := s.users.CountActiveByTenantTx(ctx, s.db, tenantID)
	if err != nil {
		return err
	}
	if active >= tenant.MaxUsers {
		return domain.ErrUserLimitReached
	}
	return nil
}

// checkAssignable reports whether actor may give role to a user of its tenant.
// super_admin only exists in the system tenant, and nobody hands out a role
// above their own.
func checkAssignable(actor *domain.Principal, role domain.Role) error {
	if !role.Known() {
		return domain.ErrAccessLevelNotFound
	}
	if role == domain.RoleSuperAdmin && actor.TenantID != domain.SystemTenantID {
		return domain.ErrRoleNotAssignable
	}
	if role.Outranks(actor.Role) {
		return domain.ErrRoleNotAssignable
	}
	return nil
}

// buildUser validates a new account and hashes its password.
func buildUser(ctx context.Context, sessions *SessionService, in NewUserInput, now time.Time) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	email, err := ParseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := SanitizeName(in.Name)
	if err := ValidateStringLength("name", name, 2, 200); err != nil {
		return nil, err
	}
	if !in.Role.Known() {
		return nil, domain.ErrAccessLevelNotFound
	}

	hash, err := sessions.HashNewPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         in.Role,
		UnitID:       in.UnitID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
