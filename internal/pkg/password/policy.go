package password

import (
	"fmt"
	"unicode"
)

const (
	DefaultMinLength = 8
	// MaxBytes is the bcrypt input limit.
	MaxBytes = 72
)

// Policy describes what a new password must contain. The zero value only
// requires a non-empty password.
type Policy struct {
	MinLength      int  `json:"min_length"`
	RequireUpper   bool `json:"require_upper"`
	RequireLower   bool `json:"require_lower"`
	RequireDigit   bool `json:"require_digit"`
	RequireSpecial bool `json:"require_special"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:      DefaultMinLength,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Check returns a human readable reason when plain violates the policy.
func (p Policy) Check(plain string) error {
	if plain == "" {
		return fmt.Errorf("password is required")
	}
	if n := len([]rune(plain)); n < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if len(plain) > MaxBytes {
		return fmt.Errorf("password must be at most %d bytes long", MaxBytes)
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if (p.RequireUpper && !hasUpper) || (p.RequireLower && !hasLower) ||
		(p.RequireDigit && !hasDigit) || (p.RequireSpecial && !hasSpecial) {
		return fmt.Errorf("password must include %s", p.describeClasses())
	}
	return nil
}

func (p Policy) describeClasses() string {
	var parts []string
	if p.RequireUpper {
		parts = append(parts, "an uppercase letter")
	}
	if p.RequireLower {
		parts = append(parts, "a lowercase letter")
	}
	if p.RequireDigit {
		parts = append(parts, "a number")
	}
	if p.RequireSpecial {
		parts = append(parts, "a special character")
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for i := 1; i < len(parts)-1; i++ {
		out += ", " + parts[i]
	}
	return out + " and " + parts[len(parts)-1]
}
