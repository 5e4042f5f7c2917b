package cryptoutil

import (
	"regexp"
	"unicode/utf8"
)

// MinPasswordLength is the minimum number of characters accepted by ValidateStrength.
const MinPasswordLength = 8

// Violation messages reported by ValidateStrength.
const (
	ViolationLength    = "Password must be at least 8 characters long"
	ViolationUppercase = "Password must contain at least one uppercase letter"
	ViolationLowercase = "Password must contain at least one lowercase letter"
	ViolationDigit     = "Password must contain at least one number"
)

// StrengthResult lists every unmet password rule.
type StrengthResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// ValidateStrength checks every rule without short-circuiting so callers can show all
// violations at once. Letter and digit classes are ASCII only: A-Z, a-z and 0-9.
func ValidateStrength(plaintext string) StrengthResult {
	var upper, lower, digit bool
	for _, r := range plaintext {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}

	violations := make([]string, 0, 4)
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		violations = append(violations, ViolationLength)
	}
	if !upper {
		violations = append(violations, ViolationUppercase)
	}
	if !lower {
		violations = append(violations, ViolationLowercase)
	}
	if !digit {
		violations = append(violations, ViolationDigit)
	}

	return StrengthResult{Valid: len(violations) == 0, Violations: violations}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether email has the shape local@domain.tld.
func ValidateEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}
