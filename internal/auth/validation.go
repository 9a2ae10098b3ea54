package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Password policies
const (
	PolicyStrict  = "strict"
	PolicyRelaxed = "relaxed"
)

const (
	minStrictLength = 8
	// MaxPasswordBytes is the bcrypt input limit
	MaxPasswordBytes = 72
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)
	phonePattern = regexp.MustCompile(`^(\+[0-9]+[\- .]*)?(\([0-9]+\)[\- .]*)?([0-9][0-9\- .]+[0-9])$`)
)

// PasswordPolicy decides whether a password is strong enough to register with
type PasswordPolicy struct {
	name string
}

// NewPasswordPolicy returns the named policy; unknown names fall back to strict
func NewPasswordPolicy(name string) PasswordPolicy {
	if strings.EqualFold(name, PolicyRelaxed) {
		return PasswordPolicy{name: PolicyRelaxed}
	}
	return PasswordPolicy{name: PolicyStrict}
}

// Name returns the policy name
func (p PasswordPolicy) Name() string {
	return p.name
}

// Validate checks the password against the policy.
// strict: 8+ characters with an uppercase letter, a digit and a symbol.
// relaxed: an uppercase letter and a digit.
// Both cap the length at MaxPasswordBytes.
func (p PasswordPolicy) Validate(password string) error {
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}

	hasUpper, hasDigit, hasSymbol := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}

	if p.name == PolicyRelaxed {
		if !hasUpper || !hasDigit {
			return fmt.Errorf("password must include an uppercase letter and a number")
		}
		return nil
	}

	if len([]rune(password)) < minStrictLength || !hasUpper || !hasDigit || !hasSymbol {
		return fmt.Errorf("password must be %d+ chars, include uppercase, a number, and a symbol", minStrictLength)
	}
	return nil
}

// ValidateUsername rejects usernames that could be mistaken for an email at login
func ValidateUsername(username string) error {
	if strings.Contains(username, "@") {
		return fmt.Errorf("username must not contain @")
	}
	return nil
}

// ValidateEmail checks the address against the standard email pattern
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePhone checks the number against the standard phone pattern
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("invalid phone number")
	}
	return nil
}
