package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/yieldbook/pkg/httpx"
)

// Error codes carried in the "error" member of every error response.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodePolicyViolation    = "policy_violation"
	ErrorCodeEmailTaken         = "email_taken"
	ErrorCodeUsernameTaken      = "username_taken"
	ErrorCodeRegistrationFailed = "registration_failed"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeAccountInactive    = "account_inactive"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the single error envelope of the service. The server writes
// it with WriteError and the client SDK returns it from failed calls.
type APIError struct {
	// StatusCode is the HTTP status the error travels with.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`

	// Field names the offending input for policy violations.
	Field string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches any *APIError with the same code, so callers can write
// errors.Is(err, authsdk.ErrInvalidToken).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as a non-cacheable JSON response. Credential and
// token failures also carry an RFC 6750 bearer challenge.
func (e *APIError) WriteError(w http.ResponseWriter) {
	switch e.Code {
	case ErrorCodeInvalidCredentials:
		httpx.SetBearerChallenge(w, "", "")
	case ErrorCodeInvalidToken:
		httpx.SetBearerChallenge(w, ErrorCodeInvalidToken, "")
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// WithField returns a copy of e naming field.
func (e *APIError) WithField(field, description string) *APIError {
	out := *e
	out.Field = field
	if description != "" {
		out.Description = description
	}
	return &out
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrPolicyViolation = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodePolicyViolation,
		Description: "the registration input does not meet policy",
	}

	ErrEmailTaken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeEmailTaken,
		Description: "email already registered",
		Field:       "email",
	}

	ErrUsernameTaken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUsernameTaken,
		Description: "username already taken",
		Field:       "username",
	}

	ErrRegistrationFailed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRegistrationFailed,
		Description: "registration failed",
	}

	// ErrInvalidCredentials never says which of identifier or password was
	// wrong.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "incorrect username or password",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid or expired",
	}

	ErrAccountInactive = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountInactive,
		Description: "account is disabled",
	}

	ErrRateLimitExceeded = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimitExceeded,
		Description: "too many requests, please try again later",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies
// that are not an error envelope fall back to server_error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
