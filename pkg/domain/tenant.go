package domain

import (
	"math"
	"time"
)

// SystemTenantID is the tenant that owns platform administrators.
const SystemTenantID int64 = 0

// NearExpiryWindow is how far ahead of expiration a tenant starts being warned.
const NearExpiryWindow = 7 * 24 * time.Hour

// TenantStatus represents the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusTrial, TenantStatusSuspended, TenantStatusCancelled:
		return true
	}
	return false
}

// Tenant represents an organization (a CRAS/CREAS unit or municipality).
type Tenant struct {
	ID           int64
	Subdomain    string
	Name         string
	ContactEmail string
	Status       TenantStatus
	Plan         string
	MaxUsers     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
}

// IsSystem returns true for the platform tenant.
func (t *Tenant) IsSystem() bool {
	return t.ID == SystemTenantID
}

// CheckLifecycle validates the tenant status and expiration at the given instant.
// It returns the number of whole days left when the tenant expires within
// NearExpiryWindow, or -1 when no warning applies.
func (t *Tenant) CheckLifecycle(now time.Time) (daysRemaining int, err error) {
	switch t.Status {
	case TenantStatusSuspended:
		return -1, ErrTenantSuspended
	case TenantStatusCancelled:
		return -1, ErrTenantCancelled
	}

	if t.IsSystem() || t.ExpiresAt == nil {
		return -1, nil
	}

	left := t.ExpiresAt.Sub(now)
	if left < 0 {
		return -1, &TenantExpiredError{
			Subdomain:   t.Subdomain,
			DaysOverdue: int(math.Ceil(-left.Hours() / 24)),
		}
	}
	if left <= NearExpiryWindow {
		return int(left.Hours() / 24), nil
	}
	return -1, nil
}
