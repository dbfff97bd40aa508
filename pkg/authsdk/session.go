package authsdk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// expiryBuffer refreshes access tokens slightly before they expire.
const expiryBuffer = 30 * time.Second

// Session holds an access token and refreshes it through the client's
// refresh cookie when it runs out. Safe for concurrent use.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.set(tokenResp)
	return s
}

func (s *Session) set(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expiryBuffer)
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Refresh rotates the session unconditionally.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	tokenResp, err := s.client.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.set(tokenResp)
	return nil
}

// getValidToken returns a live access token, refreshing first if needed.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Me returns the account behind this session.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Me(ctx, token)
}

// Logout ends the session and drops the access token.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	return s.client.Logout(ctx)
}
