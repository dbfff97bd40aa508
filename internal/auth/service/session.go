package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/policy"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
	"github.com/aussiebroadwan/yieldbook/pkg/idx"
	"github.com/aussiebroadwan/yieldbook/pkg/jwtx"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"
)

// dummyPassword is hashed once and verified against whenever a login names
// an unknown account, so both failure paths cost one bcrypt comparison.
const dummyPassword = "yieldbook-timing-equaliser"

// SessionService drives registration, login, refresh, logout and bearer
// authentication.
type SessionService struct {
	Store  store.Store
	Codec  *jwtx.Codec
	Hasher cryptox.PasswordHasher
	Policy policy.Gate

	// SingleUse makes every refresh token redeemable once. Issued refresh
	// jtis are recorded in the store and consumed on refresh or logout.
	SingleUse bool

	// Now defaults to time.Now.
	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register validates the input, stores a new active account and opens a
// session for it.
func (s *SessionService) Register(
	ctx context.Context,
	email, username, password string,
) (sess domain.Session, user domain.User, err error) {
	defer func() { recordTransition(ActionRegister, err) }()
	l := slogx.FromContext(ctx)

	if err := s.Policy.ValidateRegistration(email, username, password); err != nil {
		l.Info("registration rejected", "kind", Kind(err))
		return domain.Session{}, domain.User{}, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user = domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        normalizeEmail(email),
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return mapCreateError(err)
		}

		var err error
		sess, err = s.issue(ctx, tx.RefreshTokens(), user.ID)
		return err
	})
	if err != nil {
		l.Info("registration failed", "kind", Kind(err))
		return domain.Session{}, domain.User{}, err
	}

	l.Info("user registered", "sub", user.ID)
	return sess, user, nil
}

// mapCreateError picks the duplicate error naming the collided field. The
// store's constraint report is authoritative; nothing is pre-checked.
func mapCreateError(err error) error {
	var ce *store.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Column {
		case "email":
			return ErrEmailTaken
		case "username":
			return ErrUsernameTaken
		}
		return ErrRegistrationFailed
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrRegistrationFailed
	}
	return err
}

// Login checks the password for the account named by identifier (a
// username, or failing that an email) and opens a session. Unknown
// accounts and wrong passwords are indistinguishable to the caller.
func (s *SessionService) Login(
	ctx context.Context,
	identifier, password string,
) (sess domain.Session, user domain.User, err error) {
	defer func() { recordTransition(ActionLogin, err) }()
	l := slogx.FromContext(ctx)

	user, err = lookupUser(ctx, s.Store.Users(), identifier)
	if errors.Is(err, store.ErrNotFound) {
		s.verify(password, s.dummy())
		l.Info("login failed", "kind", ErrInvalidCredentials.Error())
		return domain.Session{}, domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}

	if !s.verify(password, user.PasswordHash) {
		l.Info("login failed", "kind", ErrInvalidCredentials.Error(), "sub", user.ID)
		return domain.Session{}, domain.User{}, ErrInvalidCredentials
	}

	// Only reported once the password has proven who is asking.
	if !user.IsActive {
		l.Info("login refused", "kind", ErrAccountInactive.Error(), "sub", user.ID)
		return domain.Session{}, domain.User{}, ErrAccountInactive
	}

	// Only the timestamp and an upgraded hash are written back. The update
	// is conditional on is_active so a deactivation racing this login wins.
	now := s.now().UTC()
	var upgraded string
	if s.Hasher.NeedsRehash(user.PasswordHash) {
		if h, err := s.hash(password); err == nil {
			upgraded = h
		} else {
			l.Warn("password rehash failed", "sub", user.ID, "error", err)
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.Users().TouchUser(ctx, user.ID, upgraded, now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountInactive
		}
		if err != nil {
			return err
		}

		sess, err = s.issue(ctx, tx.RefreshTokens(), user.ID)
		return err
	})
	if errors.Is(err, ErrAccountInactive) {
		l.Info("login refused", "kind", ErrAccountInactive.Error(), "sub", user.ID)
		return domain.Session{}, domain.User{}, ErrAccountInactive
	}
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}

	user.UpdatedAt = now
	if upgraded != "" {
		user.PasswordHash = upgraded
		l.Info("password hash upgraded", "sub", user.ID)
	}

	l.Info("user logged in", "sub", user.ID)
	return sess, user, nil
}

// Refresh redeems a refresh token for a new access and refresh pair.
func (s *SessionService) Refresh(
	ctx context.Context,
	refreshToken string,
) (sess domain.Session, user domain.User, err error) {
	defer func() { recordTransition(ActionRefresh, err) }()
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return domain.Session{}, domain.User{}, ErrTokenInvalid
	}

	claims, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		l.Info("refresh rejected", "kind", ErrTokenInvalid.Error(), slogx.Fingerprint("token_fp", refreshToken))
		return domain.Session{}, domain.User{}, ErrTokenInvalid
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = s.activeUser(ctx, tx.Users(), claims.Subject)
		if err != nil {
			return err
		}

		if s.SingleUse {
			_, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, claims.ID, s.now())
			if errors.Is(err, store.ErrNotFound) {
				return ErrTokenInvalid
			}
			if err != nil {
				return err
			}
		}

		sess, err = s.issue(ctx, tx.RefreshTokens(), user.ID)
		return err
	})
	if err != nil {
		l.Info("refresh failed", "kind", Kind(err), "sub", claims.Subject, slogx.Fingerprint("token_fp", refreshToken))
		return domain.Session{}, domain.User{}, err
	}

	l.Debug("session refreshed", "sub", user.ID)
	return sess, user, nil
}

// Logout ends the session bound to refreshToken. It never fails: clearing
// the client's cookie is the caller's job and a bad token changes nothing.
// With single-use refresh tokens the presented token is also burnt.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	recordTransition(ActionLogout, nil)
	if !s.SingleUse || refreshToken == "" {
		return
	}

	claims, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return
	}

	_, err = s.Store.RefreshTokens().ConsumeRefreshToken(ctx, claims.ID, s.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Warn("logout could not burn refresh token", "sub", claims.Subject, "error", err)
	}
}

// Authenticate resolves an access token to its active account.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (user domain.User, err error) {
	defer func() { recordTransition(ActionAuthenticate, err) }()

	claims, err := s.Codec.VerifyKind(accessToken, jwtx.KindAccess)
	if err != nil {
		return domain.User{}, ErrTokenInvalid
	}

	return s.activeUser(ctx, s.Store.Users(), claims.Subject)
}

func (s *SessionService) activeUser(ctx context.Context, users store.Users, subject string) (domain.User, error) {
	if !idx.Valid(subject) {
		return domain.User{}, ErrTokenInvalid
	}

	user, err := users.GetUserByID(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrTokenInvalid
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, ErrAccountInactive
	}
	return user, nil
}

// lookupUser tries identifier as a username first and then as an email.
func lookupUser(ctx context.Context, users store.Users, identifier string) (domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.User{}, store.ErrNotFound
	}

	user, err := users.GetUserByUsername(ctx, identifier)
	if !errors.Is(err, store.ErrNotFound) {
		return user, err
	}
	return users.GetUserByEmail(ctx, normalizeEmail(identifier))
}

// issue signs a fresh pair for subject, recording the refresh jti when
// refresh tokens are single-use.
func (s *SessionService) issue(ctx context.Context, ledger store.RefreshTokens, subject string) (domain.Session, error) {
	access, err := s.Codec.IssueAccess(subject)
	if err != nil {
		return domain.Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Codec.IssueRefresh(subject)
	if err != nil {
		return domain.Session{}, fmt.Errorf("issue refresh token: %w", err)
	}

	if s.SingleUse {
		err := ledger.CreateRefreshToken(ctx, domain.RefreshToken{
			JTI:       refresh.Claims.ID,
			UserID:    subject,
			ExpiresAt: refresh.Claims.ExpiresAtTime(),
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return domain.Session{}, fmt.Errorf("record refresh token: %w", err)
		}
	}

	return domain.Session{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.Claims.ExpiresAtTime(),
		RefreshExpiresAt: refresh.Claims.ExpiresAtTime(),
	}, nil
}

func (s *SessionService) hash(password string) (string, error) {
	defer observeHash("hash", time.Now())
	return s.Hasher.Hash(password)
}

func (s *SessionService) verify(password, hash string) bool {
	defer observeHash("verify", time.Now())
	return s.Hasher.Verify(password, hash)
}

func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash(dummyPassword)
		if err != nil {
			slog.Default().Error("failed to prepare dummy password hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
