package domain

// Principal is an authenticated user as seen by handlers.
type Principal struct {
	UserID   int64  `json:"userId"`
	TenantID int64  `json:"tenantId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	UnitID   *int64 `json:"unit,omitempty"`
}

// IsSystem returns true for principals of the platform tenant.
func (p *Principal) IsSystem() bool {
	return p.TenantID == SystemTenantID
}

// IsAdministrator reports whether the principal bypasses the permission matrix.
// This is the only place the bypass is decided: tenant admins bypass within
// their tenant, super admins only when they belong to the system tenant.
func (p *Principal) IsAdministrator() bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleSuperAdmin:
		return p.IsSystem()
	}
	return false
}

// IsSuperAdmin reports whether the principal is a platform administrator.
func (p *Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin && p.IsSystem()
}

// SharesUnit reports whether unitID is the principal's own unit. A principal
// without a unit shares none.
func (p *Principal) SharesUnit(unitID *int64) bool {
	return p.UnitID != nil && unitID != nil && *p.UnitID == *unitID
}
