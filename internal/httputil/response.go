package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a failure body with an explicit code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Success: false, Code: code, Message: message})
}

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// errorKinds maps every domain error to its response. Order matters where one
// error wraps another.
var errorKinds = []errorKind{
	{domain.ErrInvalidHost, http.StatusBadRequest, "invalid_host", "invalid host"},
	{domain.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found", "organization not found"},
	{domain.ErrTenantSuspended, http.StatusForbidden, "tenant_suspended", "organization suspended"},
	{domain.ErrTenantCancelled, http.StatusForbidden, "tenant_cancelled", "organization cancelled"},
	{domain.ErrTenantExpired, http.StatusPaymentRequired, "tenant_expired", "subscription expired"},

	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "authentication required"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "token_invalid", "invalid token"},
	{domain.ErrSessionExpired, http.StatusUnauthorized, "session_expired", "session expired"},
	{domain.ErrTenantMismatch, http.StatusForbidden, "tenant_mismatch", "token does not belong to this organization"},
	{domain.ErrPrincipalInvalid, http.StatusUnauthorized, "principal_invalid", "user inactive or not found"},
	{domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied", "permission denied"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	{domain.ErrMFARequired, http.StatusUnauthorized, "mfa_required", "one-time code required"},
	{domain.ErrInvalidOTP, http.StatusBadRequest, "invalid_otp", "invalid one-time code"},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts", "too many login attempts, try again later"},

	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found", "user not found"},
	{domain.ErrUserAlreadyExists, http.StatusConflict, "user_exists", "username or email already in use"},
	{domain.ErrSubdomainTaken, http.StatusConflict, "subdomain_taken", "subdomain already taken"},
	{domain.ErrInvalidSubdomain, http.StatusBadRequest, "invalid_subdomain", "invalid subdomain"},
	{domain.ErrUserLimitReached, http.StatusConflict, "user_limit_reached", "user limit of the plan reached"},
	{domain.ErrAccessLevelNotFound, http.StatusBadRequest, "invalid_role", "unknown access level"},
	{domain.ErrRoleNotAssignable, http.StatusForbidden, "role_not_assignable", "role cannot be assigned"},
	{domain.ErrInvalidUsername, http.StatusBadRequest, "invalid_username", "username must be 3-30 letters, digits, '_' or '-'"},
}

// ErrorCode returns the response code WriteError would use for err.
func ErrorCode(err error) string {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			return kind.code
		}
	}
	return "internal_error"
}

// WriteError maps err to its status and code. Validation errors carry their
// own message; anything unknown is logged and answered with a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var policy *domain.PolicyError
	if errors.As(err, &policy) {
		Error(w, http.StatusBadRequest, "weak_password", policy.Reason)
		return
	}
	if errors.Is(err, domain.ErrInvalidEmail) || errors.Is(err, domain.ErrInvalidInput) {
		code := "invalid_input"
		if errors.Is(err, domain.ErrInvalidEmail) {
			code = "invalid_email"
		}
		Error(w, http.StatusBadRequest, code, err.Error())
		return
	}

	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			Error(w, kind.status, kind.code, kind.message)
			return
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// DecodeJSON decodes the request body into v. It answers 400 or 413 itself
// and returns false when decoding failed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil {
		return true
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		Error(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
	case errors.Is(err, io.EOF):
		Error(w, http.StatusBadRequest, "invalid_body", "request body is required")
	default:
		Error(w, http.StatusBadRequest, "invalid_body", "invalid request body")
	}
	return false
}

// ClientIP returns the address of the caller. Proxy headers are resolved
// earlier by chi's RealIP middleware, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
