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

const (
	defaultTrialDays = 14
	defaultPlan      = "basico"
	defaultMaxUsers  = 10
)

// TenantServiceConfig holds tenant provisioning settings.
type TenantServiceConfig struct {
	TrialDays       int
	DefaultMaxUsers int
	Now             func() time.Time
}

// TenantService provisions and administers tenants.
type TenantService struct {
	db       *sql.DB
	tenants  *repository.TenantsRepository
	users    *repository.UsersRepository
	sessions *SessionService
	resolver *TenantResolver
	config   TenantServiceConfig
	logger   *slog.Logger
}

// NewTenantService creates a tenant service. The resolver cache is invalidated
// whenever a tenant changes.
func NewTenantService(
	db *sql.DB,
	tenants *repository.TenantsRepository,
	users *repository.UsersRepository,
	sessions *SessionService,
	resolver *TenantResolver,
	config TenantServiceConfig,
	logger *slog.Logger,
) *TenantService {
	if config.TrialDays <= 0 {
		config.TrialDays = defaultTrialDays
	}
	if config.DefaultMaxUsers <= 0 {
		config.DefaultMaxUsers = defaultMaxUsers
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{
		db:       db,
		tenants:  tenants,
		users:    users,
		sessions: sessions,
		resolver: resolver,
		config:   config,
		logger:   logger,
	}
}

// SignupInput is a self-service signup from the marketing site.
type SignupInput struct {
	Subdomain     string
	Name          string
	ContactEmail  string
	AdminName     string
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Signup creates a trial tenant together with its first administrator.
// Both rows are written in one transaction.
func (s *TenantService) Signup(ctx context.Context, in SignupInput) (*domain.Tenant, *domain.User, error) {
	now := s.config.Now().UTC()
	expires := now.AddDate(0, 0, s.config.TrialDays)

	for _, email := range []string{in.ContactEmail, in.AdminEmail} {
		if err := RejectDisposable(email); err != nil {
			return nil, nil, err
		}
	}

	tenant, err := s.newTenant(in.Subdomain, in.Name, in.ContactEmail, now)
	if err != nil {
		return nil, nil, err
	}
	tenant.Status = domain.TenantStatusTrial
	tenant.ExpiresAt = &expires

	admin, err := s.newUser(ctx, NewUserInput{
		Username: in.AdminUsername,
		Email:    in.AdminEmail,
		Name:     in.AdminName,
		Password: in.AdminPassword,
		Role:     domain.RoleAdmin,
	}, now)
	if err != nil {
		return nil, nil, err
	}

	err = repository.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.tenants.CreateTx(ctx, tx, tenant); err != nil {
			return err
		}
		admin.TenantID = tenant.ID
		return s.users.CreateTx(ctx, tx, admin)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("tenant signed up",
		"tenant_id", tenant.ID,
		"subdomain", tenant.Subdomain,
		"expires_at", expires,
	)
	return tenant, admin, nil
}

// CreateTenantInput is a tenant created by a platform administrator.
type CreateTenantInput struct {
	Subdomain    string
	Name         string
	ContactEmail string
	Status       domain.TenantStatus
	Plan         string
	MaxUsers     int
	ExpiresAt    *time.Time
}

// Create creates a tenant without users. The tenant admin is added afterwards.
func (s *TenantService) Create(ctx context.Context, in CreateTenantInput) (*domain.Tenant, error) {
	tenant, err := s.newTenant(in.Subdomain, in.Name, in.ContactEmail, s.config.Now().UTC())
	if err != nil {
		return nil, err
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
		}
		tenant.Status = in.Status
	}
	if in.Plan != "" {
		tenant.Plan = in.Plan
	}
	if in.MaxUsers > 0 {
		tenant.MaxUsers = in.MaxUsers
	}
	tenant.ExpiresAt = in.ExpiresAt

	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created", "tenant_id", tenant.ID, "subdomain", tenant.Subdomain)
	return tenant, nil
}

// TenantPatch lists the tenant attributes a platform administrator may change.
// Nil fields are left untouched. The subdomain is immutable.
type TenantPatch struct {
	Name         *string
	ContactEmail *string
	Status       *domain.TenantStatus
	Plan         *string
	MaxUsers     *int
	ExpiresAt    *time.Time
	ClearExpiry  bool
}

// Update applies patch to the tenant and drops it from the resolver cache.
func (s *TenantService) Update(ctx context.Context, id int64, patch TenantPatch) (*domain.Tenant, error) {
	if id == domain.SystemTenantID {
		return nil, fmt.Errorf("%w: the system tenant cannot be modified", domain.ErrInvalidInput)
	}

	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := SanitizeName(*patch.Name)
		if err := ValidateStringLength("name", name, 2, 200); err != nil {
			return nil, err
		}
		tenant.Name = name
	}
	if patch.ContactEmail != nil {
		email, err := ParseEmail(*patch.ContactEmail)
		if err != nil {
			return nil, err
		}
		tenant.ContactEmail = email
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *patch.Status)
		}
		tenant.Status = *patch.Status
	}
	if patch.Plan != nil {
		tenant.Plan = strings.TrimSpace(*patch.Plan)
	}
	if patch.MaxUsers != nil {
		if *patch.MaxUsers < 1 {
			return nil, fmt.Errorf("%w: max users must be positive", domain.ErrInvalidInput)
		}
		tenant.MaxUsers = *patch.MaxUsers
	}
	if patch.ClearExpiry {
		tenant.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		tenant.ExpiresAt = patch.ExpiresAt
	}

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	s.resolver.Invalidate(tenant.Subdomain)

	s.logger.Info("tenant updated", "tenant_id", tenant.ID, "status", tenant.Status)
	return tenant, nil
}

// List returns all customer tenants.
func (s *TenantService) List(ctx context.Context) ([]*domain.Tenant, error) {
	return s.tenants.List(ctx)
}

func (s *TenantService) newTenant(subdomain, name, contactEmail string, now time.Time) (*domain.Tenant, error) {
	subdomain = NormalizeSubdomain(subdomain)
	if err := ValidateSubdomain(subdomain, s.resolver.MarketingLabel()); err != nil {
		return nil, err
	}

	name = SanitizeName(name)
	if err := ValidateStringLength("name", name, 2, 200); err != nil {
		return nil, err
	}

	if contactEmail != "" {
		var err error
		if contactEmail, err = ParseEmail(contactEmail); err != nil {
			return nil, err
		}
	}

	return &domain.Tenant{
		Subdomain:    subdomain,
		Name:         name,
		ContactEmail: contactEmail,
		Status:       domain.TenantStatusActive,
		Plan:         defaultPlan,
		MaxUsers:     s.config.DefaultMaxUsers,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// newUser validates a new account and hashes its password. TenantID is left
// for the caller to set.
func (s *TenantService) newUser(ctx context.Context, in NewUserInput, now time.Time) (*domain.User, error) {
	return buildUser(ctx, s.sessions, in, now)
}
