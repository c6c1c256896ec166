package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// PermissionStore reads the effective permission rows of a tenant.
type PermissionStore interface {
	Find(ctx context.Context, tenantID int64, role domain.Role, module string) (*domain.Permission, error)
	ListEffective(ctx context.Context, tenantID int64, role domain.Role) ([]*domain.Permission, error)
}

// PermissionEvaluator decides whether a principal may perform an action on a module.
// It fails closed: unknown roles, missing rows and store errors all deny.
type PermissionEvaluator struct {
	store PermissionStore
}

// NewPermissionEvaluator creates a permission evaluator.
func NewPermissionEvaluator(store PermissionStore) *PermissionEvaluator {
	return &PermissionEvaluator{store: store}
}

// Can reports whether p may perform action on module.
func (e *PermissionEvaluator) Can(ctx context.Context, p *domain.Principal, module string, action domain.Action) (bool, error) {
	grant, err := e.Grant(ctx, p, module)
	if err != nil {
		return false, err
	}
	return grant.Capabilities.Allows(action), nil
}

// Grant returns the principal's capabilities on module, including whether
// records must be filtered to the principal's unit.
func (e *PermissionEvaluator) Grant(ctx context.Context, p *domain.Principal, module string) (domain.Grant, error) {
	grant := domain.Grant{Module: module}
	if p == nil {
		return grant, nil
	}

	if p.IsAdministrator() {
		grant.Capabilities = domain.FullCapabilities()
		grant.Bypass = true
		return grant, nil
	}

	if !p.Role.Known() || !domain.ValidModuleCode(module) {
		return grant, nil
	}

	row, err := e.store.Find(ctx, p.TenantID, p.Role, module)
	if errors.Is(err, repository.ErrPermissionNotFound) {
		return grant, nil
	}
	if err != nil {
		return grant, fmt.Errorf("load permission %s/%s: %w", p.Role, module, err)
	}

	grant.Capabilities = row.Capabilities
	grant.UnitRestricted = row.UnitRestricted
	return grant, nil
}

// ViewableModules lists the modules the principal can view, or the single
// entry domain.AllModules for administrators.
func (e *PermissionEvaluator) ViewableModules(ctx context.Context, p *domain.Principal) ([]string, error) {
	if p.IsAdministrator() {
		return []string{domain.AllModules}, nil
	}
	if !p.Role.Known() {
		return []string{}, nil
	}

	rows, err := e.store.ListEffective(ctx, p.TenantID, p.Role)
	if err != nil {
		return nil, fmt.Errorf("list permissions for %s: %w", p.Role, err)
	}

	modules := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Capabilities.View {
			modules = append(modules, row.Module)
		}
	}
	return modules, nil
}
