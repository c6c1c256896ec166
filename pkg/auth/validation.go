package auth

import (
	"regexp"
	"strings"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

var (
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,29}$`)
	subdomainRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,38}[a-z0-9])$`)
)

// reservedSubdomains cannot be claimed by tenants.
var reservedSubdomains = map[string]bool{
	"www":      true,
	"api":      true,
	"app":      true,
	"admin":    true,
	"system":   true,
	"mail":     true,
	"static":   true,
	"suporte":  true,
	"cadastro": true,
	"demo":     true,
}

// ValidateUsername checks the username format: 3-30 ASCII letters, digits,
// underscores or hyphens, starting with a letter or digit.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// NormalizeSubdomain lowercases and trims a requested subdomain.
func NormalizeSubdomain(subdomain string) string {
	return strings.ToLower(strings.TrimSpace(subdomain))
}

// ValidateSubdomain checks a requested tenant subdomain. marketing is the
// first label of the base domain, which is reserved as well.
func ValidateSubdomain(subdomain, marketing string) error {
	if !subdomainRegex.MatchString(subdomain) || strings.Contains(subdomain, "--") {
		return domain.ErrInvalidSubdomain
	}
	if reservedSubdomains[subdomain] || subdomain == marketing {
		return domain.ErrInvalidSubdomain
	}
	return nil
}
