// Package policy validates registration input before any credential is
// created.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinPasswordLength is used when a Gate has no explicit minimum.
const DefaultMinPasswordLength = 8

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// Rule names a single registration constraint.
type Rule string

const (
	RulePasswordTooShort Rule = "password_too_short"
	RuleUsernameLength   Rule = "username_length"
	RuleUsernameCharset  Rule = "username_charset"
	RuleEmailRequired    Rule = "email_required"
	RuleEmailFormat      Rule = "email_format"
)

var reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Violation is the first registration rule an input fails.
type Violation struct {
	Field   string
	Rule    Rule
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("policy: %s: %s", v.Field, v.Message)
}

// Gate holds the configured registration policy.
type Gate struct {
	MinPasswordLength int
}

// New returns a Gate enforcing minPasswordLength. Non-positive values fall
// back to DefaultMinPasswordLength.
func New(minPasswordLength int) Gate {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return Gate{MinPasswordLength: minPasswordLength}
}

// ValidateRegistration returns nil when the input is acceptable or the
// *Violation for the first failing rule. Rules are checked in the order
// password, username, email.
func (g Gate) ValidateRegistration(email, username, password string) error {
	if v := g.checkPassword(password); v != nil {
		return v
	}
	if v := checkUsername(username); v != nil {
		return v
	}
	if v := checkEmail(email); v != nil {
		return v
	}
	return nil
}

func (g Gate) checkPassword(password string) *Violation {
	min := g.MinPasswordLength
	if min <= 0 {
		min = DefaultMinPasswordLength
	}
	if utf8.RuneCountInString(password) < min {
		return &Violation{
			Field:   "password",
			Rule:    RulePasswordTooShort,
			Message: fmt.Sprintf("must be at least %d characters", min),
		}
	}
	return nil
}

func checkUsername(username string) *Violation {
	switch n := utf8.RuneCountInString(username); {
	case n < MinUsernameLength || n > MaxUsernameLength:
		return &Violation{
			Field:   "username",
			Rule:    RuleUsernameLength,
			Message: fmt.Sprintf("must be %d-%d characters", MinUsernameLength, MaxUsernameLength),
		}
	case !validUsernameRunes(username):
		return &Violation{
			Field:   "username",
			Rule:    RuleUsernameCharset,
			Message: "must only contain letters, digits or _",
		}
	}
	return nil
}

// validUsernameRunes accepts Unicode letters, numbers and underscores, and
// needs at least one letter or number. Usernames are taken as given, so
// surrounding whitespace fails here.
func validUsernameRunes(username string) bool {
	alnum := false
	for _, r := range username {
		switch {
		case r == '_':
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			alnum = true
		default:
			return false
		}
	}
	return alnum
}

func checkEmail(email string) *Violation {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return &Violation{Field: "email", Rule: RuleEmailRequired, Message: "required"}
	case !reEmail.MatchString(email):
		return &Violation{Field: "email", Rule: RuleEmailFormat, Message: "not a valid email address"}
	}
	return nil
}
