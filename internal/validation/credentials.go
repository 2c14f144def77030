// Package validation checks usernames and passwords against the account policy.
//
// Each policy is an ordered list of rules. Every rule is evaluated, so a
// caller gets the full set of failures and can either report them or collapse
// them to a single generic message.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/isdelr/authgate/internal/apperr"
)

const (
	UsernameField = "username"
	PasswordField = "password"

	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxPasswordLength = 64

	// PasswordSymbols is the set a password must draw at least one symbol from.
	PasswordSymbols = `!@#$%^&*(),.?":{}|<>`
)

// ReservedUsernames may not be registered, compared case-insensitively.
var ReservedUsernames = []string{"admin", "root", "system", "support"}

var usernameCharset = regexp.MustCompile(`^[A-Za-z0-9._]+$`)

// Rule is a single named predicate over a field value.
type Rule struct {
	Name    string
	Message string
	Check   func(string) bool
}

// Policy is the ordered rule set for one field.
type Policy struct {
	Field string
	Rules []Rule
}

// Apply runs every rule and returns one violation per failed rule.
func (p Policy) Apply(value string) []apperr.Violation {
	var out []apperr.Violation
	for _, r := range p.Rules {
		if !r.Check(value) {
			out = append(out, apperr.Violation{Field: p.Field, Rule: r.Name, Message: r.Message})
		}
	}
	return out
}

var UsernamePolicy = Policy{
	Field: UsernameField,
	Rules: []Rule{
		{
			Name:    "length",
			Message: "Username must be between 3 and 30 characters long",
			Check:   lengthBetween(MinUsernameLength, MaxUsernameLength),
		},
		{
			Name:    "charset",
			Message: "Username must contain only letters, numbers, underscores, or periods",
			Check:   usernameCharset.MatchString,
		},
		{
			Name:    "start",
			Message: "Username must start with a letter or number",
			Check: func(s string) bool {
				r, _ := utf8.DecodeRuneInString(s)
				return isASCIIAlnum(r)
			},
		},
		{
			Name:    "end",
			Message: "Username must end with a letter or number",
			Check: func(s string) bool {
				r, _ := utf8.DecodeLastRuneInString(s)
				return isASCIIAlnum(r)
			},
		},
		{
			Name:    "reserved",
			Message: "This username is reserved and cannot be used",
			Check: func(s string) bool {
				for _, reserved := range ReservedUsernames {
					if strings.EqualFold(s, reserved) {
						return false
					}
				}
				return true
			},
		},
	},
}

var PasswordPolicy = Policy{
	Field: PasswordField,
	Rules: []Rule{
		{
			Name:    "length",
			Message: "Password must be between 8 and 64 characters long",
			Check:   lengthBetween(MinPasswordLength, MaxPasswordLength),
		},
		{
			Name:    "uppercase",
			Message: "Password must contain at least one uppercase letter",
			Check:   containsRune(func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		},
		{
			Name:    "lowercase",
			Message: "Password must contain at least one lowercase letter",
			Check:   containsRune(func(r rune) bool { return r >= 'a' && r <= 'z' }),
		},
		{
			Name:    "digit",
			Message: "Password must contain at least one number",
			Check:   containsRune(func(r rune) bool { return r >= '0' && r <= '9' }),
		},
		{
			Name:    "symbol",
			Message: "Password must contain at least one special character",
			Check:   func(s string) bool { return strings.ContainsAny(s, PasswordSymbols) },
		},
		{
			Name:    "whitespace",
			Message: "Password must not contain spaces",
			Check:   func(s string) bool { return !strings.ContainsFunc(s, unicode.IsSpace) },
		},
	},
}

// ValidateUsername returns the username policy violations for s.
func ValidateUsername(s string) []apperr.Violation {
	return UsernamePolicy.Apply(s)
}

// ValidatePassword returns the password policy violations for s.
func ValidatePassword(s string) []apperr.Violation {
	return PasswordPolicy.Apply(s)
}

// ValidateCredentials runs both policies, username first.
func ValidateCredentials(username, password string) []apperr.Violation {
	return append(ValidateUsername(username), ValidatePassword(password)...)
}

func lengthBetween(lo, hi int) func(string) bool {
	return func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n >= lo && n <= hi
	}
}

func containsRune(pred func(rune) bool) func(string) bool {
	return func(s string) bool {
		return strings.IndexFunc(s, pred) >= 0
	}
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
