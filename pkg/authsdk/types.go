package authsdk

import "time"

// ErrorResponse documents the error envelope for the API docs. Clients
// receive it as *APIError.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_credentials"`
	ErrorDescription string `json:"error_description" example:"incorrect username or password"`
	Field            string `json:"field,omitempty" example:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"correct horse battery"`
}

// TokenResponse is returned by register, login and refresh. The refresh
// token never appears in a body; it travels in the refresh_token cookie.
type TokenResponse struct {
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type" example:"bearer"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in" example:"900"`
}

// UserResponse describes the authenticated account.
type UserResponse struct {
	ID        string    `json:"id" example:"01J9Z3J6Q8R4W1X7Y2V5T0N8KA"`
	Email     string    `json:"email" example:"alice@example.com"`
	Username  string    `json:"username" example:"alice"`
	IsActive  bool      `json:"is_active" example:"true"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse carries a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Successfully logged out"`
}

// RootResponse is served at GET /.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs" example:"/swagger/"`
}

// StatusResponse is served at GET /health.
type StatusResponse struct {
	Status string `json:"status" example:"healthy"`
}

// HealthResponse represents the response structure for the probe endpoints.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	// Checks is only present on /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency as "ok" or
// "error: <reason>".
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
