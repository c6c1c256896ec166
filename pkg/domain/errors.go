package domain

import (
	"errors"
	"fmt"
)

// Tenant resolution errors
var (
	ErrInvalidHost     = errors.New("invalid host")
	ErrSignupRedirect  = errors.New("marketing host, redirect to signup")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantSuspended = errors.New("tenant suspended")
	ErrTenantCancelled = errors.New("tenant cancelled")
	ErrTenantExpired   = errors.New("tenant expired")
)

// Authentication errors
var (
	ErrUnauthenticated    = errors.New("missing authorization")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrTenantMismatch     = errors.New("token tenant does not match request tenant")
	ErrPrincipalInvalid   = errors.New("principal inactive or missing")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCredential         = errors.New("credential subsystem failure")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("multi-factor authentication required")
	ErrInvalidOTP         = errors.New("invalid one-time code")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Persistence and validation errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrSubdomainTaken      = errors.New("subdomain already taken")
	ErrInvalidSubdomain    = errors.New("invalid subdomain")
	ErrUserLimitReached    = errors.New("tenant user limit reached")
	ErrAccessLevelNotFound = errors.New("access level not found")
	ErrInvalidUsername     = errors.New("invalid username format")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password does not meet requirements")
	ErrRoleNotAssignable   = errors.New("role cannot be assigned in this tenant")
	ErrInvalidInput        = errors.New("invalid input")
)

// TenantExpiredError carries how long ago the tenant expired.
type TenantExpiredError struct {
	Subdomain   string
	DaysOverdue int
}

func (e *TenantExpiredError) Error() string {
	return fmt.Sprintf("tenant %s expired %d day(s) ago", e.Subdomain, e.DaysOverdue)
}

// Is makes errors.Is(err, ErrTenantExpired) match.
func (e *TenantExpiredError) Is(target error) bool {
	return target == ErrTenantExpired
}

// PolicyError wraps a password policy violation with its human-readable reason.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is(err, ErrWeakPassword) match.
func (e *PolicyError) Unwrap() error {
	return ErrWeakPassword
}
