package service

import (
	"errors"

	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrTokenInvalid       = errors.New("invalid_token")
	ErrAccountInactive    = errors.New("account_inactive")
	ErrEmailTaken         = errors.New("email_taken")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrRegistrationFailed = errors.New("registration_failed")
)

// Kind names the error class of err for logs and metrics. Unknown errors
// are "error".
func Kind(err error) string {
	var violation *policy.Violation
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &violation):
		return "policy_violation"
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrTokenInvalid):
		return ErrTokenInvalid.Error()
	case errors.Is(err, ErrAccountInactive):
		return ErrAccountInactive.Error()
	case errors.Is(err, ErrEmailTaken):
		return ErrEmailTaken.Error()
	case errors.Is(err, ErrUsernameTaken):
		return ErrUsernameTaken.Error()
	case errors.Is(err, ErrRegistrationFailed):
		return ErrRegistrationFailed.Error()
	default:
		return "error"
	}
}
