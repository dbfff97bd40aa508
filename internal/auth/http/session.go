package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/service"
	"github.com/aussiebroadwan/yieldbook/pkg/authsdk"
	"github.com/aussiebroadwan/yieldbook/pkg/httpx"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// RefreshCookieName is the cookie the refresh token lives in.
const RefreshCookieName = authsdk.RefreshCookieName

const maxRegisterBody = 64 << 10

// SessionHandler serves the /auth endpoints.
type SessionHandler struct {
	Sessions *service.SessionService
	Cookie   httpx.CookieConfig
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates an active account and opens a session. The access token is returned in the body and the refresh token is set as the HttpOnly refresh_token cookie.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"email, username, password"
//	@Success		201		{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400		{object}	authsdk.ErrorResponse	"email_taken, username_taken, registration_failed or invalid_request"
//	@Failure		422		{object}	authsdk.ErrorResponse	"policy_violation naming the field"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Header			201		{string}	Set-Cookie				"refresh_token"
//	@Router			/auth/register [post].
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, maxRegisterBody, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, _, err := h.Sessions.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusCreated, sess)
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Checks a username or email and password and opens a session. Unknown accounts and wrong passwords get the same answer.
//	@Tags			Session
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string					true	"Username or email"
//	@Param			password	formData	string					true	"Password"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400			{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401			{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403			{object}	authsdk.ErrorResponse	"account_inactive"
//	@Failure		429			{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			200			{string}	Set-Cookie				"refresh_token"
//	@Router			/auth/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") &&
		!strings.HasPrefix(ct, "multipart/form-data") {
		authsdk.ErrInvalidRequest.WithField("", "content-type must be application/x-www-form-urlencoded").WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WithField("", "invalid form body").WriteError(w)
		return
	}

	sess, _, err := h.Sessions.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, sess)
}

// HandleRefresh godoc
//
//	@Summary		Rotate the session
//	@Description	Redeems the refresh_token cookie for a new access token and a new refresh cookie.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"account_inactive"
//	@Failure		429	{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			200	{string}	Set-Cookie				"refresh_token"
//	@Router			/auth/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := h.Cookie.Read(r)

	sess, _, err := h.Sessions.Refresh(r.Context(), raw)
	if err != nil {
		if raw != "" && errors.Is(err, service.ErrTokenInvalid) {
			h.Cookie.ClearCookie(w)
		}
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, http.StatusOK, sess)
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Clears the refresh_token cookie. Always succeeds.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Successfully logged out"
//	@Router			/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Logout(r.Context(), h.Cookie.Read(r))
	h.Cookie.ClearCookie(w)

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Successfully logged out"})
}

// HandleMe godoc
//
//	@Summary		Current account
//	@Description	Returns the account the bearer access token belongs to.
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"id, email, username, is_active, created_at"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"account_inactive"
//	@Router			/auth/me [get].
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.Principal[domain.User](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	})
}

func (h *SessionHandler) authenticate(ctx context.Context, token string) (domain.User, string, error) {
	user, err := h.Sessions.Authenticate(ctx, token)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, user.ID, nil
}

// writeSession sends the access token in the body and the refresh token
// as the cookie.
func (h *SessionHandler) writeSession(w http.ResponseWriter, status int, sess domain.Session) {
	h.Cookie.SetCookie(w, sess.RefreshToken)
	httpx.WriteJSON(w, status, authsdk.TokenResponse{
		AccessToken: sess.AccessToken,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int(h.Sessions.Codec.AccessTTL() / time.Second),
	})
}

// writeAuthnError renders bearer authentication failures.
func writeAuthnError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, httpx.ErrMissingBearer) {
		slogx.FromContext(r.Context()).Info("bearer token missing")
		err = service.ErrTokenInvalid
	}
	writeServiceError(w, r, err)
}
