package passwordreset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PasswordPolicy defines the requirements for password complexity
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
}

// DefaultPasswordPolicy is at least 8 characters with upper, lower and a digit.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
	}
}

var (
	upperRe = regexp.MustCompile(`[A-Z]`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
)

// Check verifies that a password meets the complexity requirements
func (p *PasswordPolicy) Check(password string) error {
	password = strings.TrimSpace(password)

	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if p.RequireUppercase && !upperRe.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !lowerRe.MatchString(password) {
		return errors.New("password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digitRe.MatchString(password) {
		return errors.New("password must contain at least one digit")
	}
	return nil
}
