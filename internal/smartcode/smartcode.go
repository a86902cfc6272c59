// Package smartcode validates the classification code every record carries.
// The code is the only place domain semantics live in the shared tables, so
// every insert and update is gated on it.
package smartcode

import (
	"regexp"

	"github.com/bizcore/universal/internal/apperr"
)

// Pattern: namespace token, 2-8 uppercase segments, V<integer> terminator.
// Example: SALON.CRM.CUSTOMER.PROFILE.V1
const Pattern = `^[A-Z0-9]{2,15}(\.[A-Z0-9_]{1,30}){2,8}\.V[0-9]+$`

var re = regexp.MustCompile(Pattern)

// Valid reports whether code matches the smart code pattern.
func Valid(code string) bool {
	return re.MatchString(code)
}

// Validate checks code and returns a validation error naming field and the
// expected pattern on failure. It never mutates or truncates the input.
func Validate(field, code string) error {
	if code == "" {
		return apperr.Validationf(field, "smart code is required (expected pattern %s)", Pattern)
	}
	if !re.MatchString(code) {
		return apperr.Validationf(field, "smart code %q does not match expected pattern %s", code, Pattern)
	}
	return nil
}
