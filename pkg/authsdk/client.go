package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// SDKClient is a client for the yieldbook authentication service. Its
// HTTP client owns a cookie jar, so the refresh cookie set by register,
// login and refresh is replayed automatically.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a fresh cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)

	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// Register creates an account and returns the session opened for it.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusCreated); err != nil {
		return nil, err
	}
	return newSession(c, &tokenResp), nil
}

// Login authenticates with a username or email and a password.
func (c *SDKClient) Login(ctx context.Context, identifier, password string) (*Session, error) {
	tokenResp, err := c.LoginToken(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// LoginToken is Login without wrapping the result in a Session.
func (c *SDKClient) LoginToken(ctx context.Context, identifier, password string) (*TokenResponse, error) {
	form := url.Values{
		"username": {identifier},
		"password": {password},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Refresh redeems the refresh cookie held in the jar. On success the jar
// holds the rotated cookie.
func (c *SDKClient) Refresh(ctx context.Context) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", nil, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Logout asks the service to clear the refresh cookie.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		return err
	}

	var msg MessageResponse
	return decodeJSON(resp, &msg, http.StatusOK)
}

// Me resolves accessToken to its account.
func (c *SDKClient) Me(ctx context.Context, accessToken string) (*UserResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshCookie returns the refresh cookie the jar would send to the
// service, or "" when there is none.
func (c *SDKClient) RefreshCookie() string {
	if c.HTTPClient == nil || c.HTTPClient.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.BaseURL + "/auth/refresh")
	if err != nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == RefreshCookieName {
			return ck.Value
		}
	}
	return ""
}
