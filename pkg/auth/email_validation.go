package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// disposableDomains are refused on self-service signup, where the contact
// address is the only way to reach the organization.
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
	"yopmail.com":       true,
	"sharklasers.com":   true,
}

var emailPattern = regexp.MustCompile(`^[a-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)

const maxEmailLength = 254

// ParseEmail validates email and returns it trimmed and lowercased. Display
// names ("Ana <ana@x>") and hosts without a dot are rejected.
func ParseEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", fmt.Errorf("%w: email address is required", domain.ErrInvalidEmail)
	}
	if len(normalized) > maxEmailLength {
		return "", fmt.Errorf("%w: too long (max %d characters)", domain.ErrInvalidEmail, maxEmailLength)
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Name != "" || addr.Address != normalized || !emailPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: invalid email address format", domain.ErrInvalidEmail)
	}
	return normalized, nil
}

// RejectDisposable fails for addresses on a throwaway mail domain.
func RejectDisposable(email string) error {
	_, host, _ := strings.Cut(NormalizeEmail(email), "@")
	if disposableDomains[host] {
		return fmt.Errorf("%w: disposable email addresses are not allowed", domain.ErrInvalidEmail)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
