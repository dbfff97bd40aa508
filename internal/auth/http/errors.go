package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
	"github.com/aussiebroadwan/yieldbook/internal/auth/service"
	"github.com/aussiebroadwan/yieldbook/pkg/authsdk"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// writeServiceError maps a session service error onto the wire envelope.
// Anything unrecognised is logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var violation *policy.Violation

	switch {
	case errors.As(err, &violation):
		authsdk.ErrPolicyViolation.WithField(violation.Field, violation.Message).WriteError(w)
	case errors.Is(err, service.ErrEmailTaken):
		authsdk.ErrEmailTaken.WriteError(w)
	case errors.Is(err, service.ErrUsernameTaken):
		authsdk.ErrUsernameTaken.WriteError(w)
	case errors.Is(err, service.ErrRegistrationFailed):
		authsdk.ErrRegistrationFailed.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrTokenInvalid):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrAccountInactive):
		authsdk.ErrAccountInactive.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
