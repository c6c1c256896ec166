package domain

import (
	"time"
)

// User represents an account in usuarios. Every user belongs to exactly one
// tenant; platform administrators belong to SystemTenantID.
type User struct {
	ID           int64
	TenantID     int64
	Username     string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	UnitID       *int64
	Active       bool
	TOTPSecret   *string // AES-256-GCM encrypted, nil when not enrolled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasTOTP returns true if the user enrolled a second factor.
func (u *User) HasTOTP() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}

// Principal returns the request-scoped identity for the user.
func (u *User) Principal() *Principal {
	return &Principal{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		UnitID:   u.UnitID,
	}
}
