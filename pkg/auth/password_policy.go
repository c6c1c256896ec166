package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cras-gestao/gestao-suas/internal/config"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// PasswordPolicy defines password complexity requirements. The zero value
// only enforces the bcrypt length ceiling and the common password list.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// commonPasswords are refused regardless of the configured rules. Staff tend
// to reuse the system or agency name.
var commonPasswords = map[string]bool{
	"12345678":   true,
	"123456789":  true,
	"senha123":   true,
	"senha@123":  true,
	"mudar123":   true,
	"password":   true,
	"gestaosuas": true,
	"cras2024":   true,
	"cras2025":   true,
	"cras2026":   true,
	"creas2026":  true,
}

type characterRule struct {
	required func(*PasswordPolicy) bool
	matches  func(rune) bool
	missing  string
}

var characterRules = []characterRule{
	{func(p *PasswordPolicy) bool { return p.RequireUppercase }, unicode.IsUpper, "one uppercase letter"},
	{func(p *PasswordPolicy) bool { return p.RequireLowercase }, unicode.IsLower, "one lowercase letter"},
	{func(p *PasswordPolicy) bool { return p.RequireNumber }, unicode.IsDigit, "one number"},
	{func(p *PasswordPolicy) bool { return p.RequireSpecial }, isSpecial, "one special character"},
}

// ValidatePassword checks password against the policy and reports every
// violation at once. Violations are *domain.PolicyError values matching
// domain.ErrWeakPassword.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if len(password) > maxPasswordBytes {
		return &domain.PolicyError{Reason: fmt.Sprintf("password must be at most %d bytes long", maxPasswordBytes)}
	}
	if commonPasswords[strings.ToLower(password)] {
		return &domain.PolicyError{Reason: "password is too common"}
	}

	var missing []string
	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	for _, rule := range characterRules {
		if rule.required(p) && strings.IndexFunc(password, rule.matches) < 0 {
			missing = append(missing, rule.missing)
		}
	}
	if len(missing) > 0 {
		return &domain.PolicyError{Reason: "password must contain " + strings.Join(missing, ", ")}
	}
	return nil
}

// Requirements describes the configured rules, for signup and admin forms.
func (p *PasswordPolicy) Requirements() string {
	var parts []string
	if p.MinLength > 0 {
		parts = append(parts, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	for _, rule := range characterRules {
		if rule.required(p) {
			parts = append(parts, rule.missing)
		}
	}
	if len(parts) == 0 {
		return "No password requirements"
	}
	return "Password must contain " + strings.Join(parts, ", ")
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
