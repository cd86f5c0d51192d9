package service // service manages login sessions and refresh tokens

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/lock"
	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/repository"
	"github.com/iliyamo/authcore/internal/utils"
)

// rotationLockTTL bounds how long a crashed refresh can block rotation.
const rotationLockTTL = 5 * time.Second

const (
	// rotationWait bounds how long a refresh that lost the rotation lock waits
	// for the winner to persist its token.
	rotationWait = time.Second
	rotationPoll = 25 * time.Millisecond
)

// SessionManager owns the session lifecycle of local accounts. A user has at
// most one live refresh token, stored verbatim on the user record.
type SessionManager struct {
	users  UserDirectory
	hasher *utils.Hasher
	codec  *utils.TokenCodec
	locker lock.Locker
	cfg    Settings
	log    zerolog.Logger

	dummyHash    string
	rotationWait time.Duration
}

// NewSessionManager wires a SessionManager. locker may be nil, in which case
// rotations are not serialized.
func NewSessionManager(users UserDirectory, hasher *utils.Hasher, codec *utils.TokenCodec,
	locker lock.Locker, cfg Settings, log zerolog.Logger) *SessionManager {
	m := &SessionManager{users: users, hasher: hasher, codec: codec, locker: locker, cfg: cfg, log: log,
		rotationWait: rotationWait}
	// Compared against when the username is unknown so both login failure
	// paths pay for one bcrypt comparison.
	if h, err := hasher.Hash(uuid.NewString()); err == nil {
		m.dummyHash = h
	}
	return m
}

// RegisterInput is a local sign-up request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a local account with role user.
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (model.PublicUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return model.PublicUser{}, apperr.Validation("username, email and password are required")
	}
	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := m.users.Insert(ctx, u); err != nil {
		if repository.IsDuplicate(err) {
			return model.PublicUser{}, apperr.Conflict("user already exists")
		}
		return model.PublicUser{}, apperr.Persistence(err)
	}
	m.log.Info().Str("user_id", u.ID).Msg("user registered")
	return u.Public(), nil
}

// Login verifies a username and password and starts a new session, replacing
// any previous one. Unknown user and wrong password fail identically.
func (m *SessionManager) Login(ctx context.Context, username, password string) (*SessionResult, error) {
	u, err := m.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		m.hasher.Verify(password, m.dummyHash)
		return nil, apperr.InvalidCredentials()
	}
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	if u.PasswordHash == "" || !m.hasher.Verify(password, u.PasswordHash) {
		return nil, apperr.InvalidCredentials()
	}
	return m.StartSession(ctx, u)
}

// StartSession issues an access/refresh pair for u and persists the refresh
// token, superseding any previous one.
func (m *SessionManager) StartSession(ctx context.Context, u *model.User) (*SessionResult, error) {
	id := tokenIdentity(u)
	refresh, err := m.codec.Issue(id, m.cfg.RefreshSecret, m.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	access, err := m.codec.Issue(id, m.cfg.AccessSecret, m.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	if _, err := m.users.Update(ctx, u.ID, model.UserUpdate{RefreshToken: model.Ptr(refresh.Token)}); err != nil {
		return nil, storeError(err, "user does not exist")
	}
	return &SessionResult{
		User:            u.Public(),
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		Cookie:          m.cfg.refreshCookie(refresh.Token),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// is rotated once its remaining lifetime drops below the rotation threshold;
// otherwise the presented token stays in use. A token that no longer matches
// the stored one is rejected.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (*SessionResult, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, apperr.Unauthorized("refresh token not provided")
	}
	claims, err := m.codec.Verify(presented, m.cfg.RefreshSecret)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "refresh token expired or invalid", err)
	}
	u, err := m.users.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, storeError(err, "user does not exist")
	}
	// only the stored token is live; a valid but older one was replaced
	if u.RefreshToken != presented {
		m.log.Warn().Str("user_id", u.ID).Str("jti", claims.ID).Msg("superseded refresh token presented")
		return nil, apperr.Unauthorized("refresh token has been superseded")
	}

	current := presented // kept until it nears expiry
	if claims.Remaining(m.codec.Now()) < m.cfg.RotationThreshold {
		current, err = m.rotate(ctx, u, presented)
		if err != nil {
			return nil, err
		}
	}

	access, err := m.codec.Issue(tokenIdentity(u), m.cfg.AccessSecret, m.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		User:            u.Public(),
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		Cookie:          m.cfg.refreshCookie(current),
	}, nil
}

// rotate issues and persists a replacement for presented under the per-user
// rotation lock and returns the token the client should keep. When another
// refresh holds the lock, the caller gets the token that refresh persists, or
// presented if none lands within rotationWait.
func (m *SessionManager) rotate(ctx context.Context, u *model.User, presented string) (string, error) {
	key := "rotate:" + u.ID
	if m.locker != nil {
		acquired, err := m.locker.Acquire(ctx, key, rotationLockTTL)
		switch {
		case err != nil:
			m.log.Warn().Err(err).Str("user_id", u.ID).Msg("rotation lock unavailable, rotating unlocked")
		case !acquired:
			m.log.Debug().Str("user_id", u.ID).Msg("rotation in progress, waiting for its token")
			return m.awaitRotation(ctx, u.ID, presented), nil
		default:
			defer func() {
				if err := m.locker.Release(context.WithoutCancel(ctx), key); err != nil {
					m.log.Warn().Err(err).Str("user_id", u.ID).Msg("release rotation lock")
				}
			}()
			// A rotation may have completed between the first read and the lock.
			fresh, err := m.users.FindByID(ctx, u.ID)
			if err != nil {
				return "", storeError(err, "user does not exist")
			}
			if fresh.RefreshToken != presented {
				return "", apperr.Unauthorized("refresh token has been superseded")
			}
		}
	}

	next, err := m.codec.Issue(tokenIdentity(u), m.cfg.RefreshSecret, m.cfg.RefreshTTL)
	if err != nil {
		return "", err
	}
	if _, err := m.users.Update(ctx, u.ID, model.UserUpdate{RefreshToken: model.Ptr(next.Token)}); err != nil {
		return "", storeError(err, "user does not exist")
	}
	m.log.Debug().Str("user_id", u.ID).Msg("refresh token rotated")
	return next.Token, nil
}

// awaitRotation polls the stored refresh token until it moves off presented.
// Handing back the persisted value keeps a slower concurrent response from
// restoring the superseded cookie.
func (m *SessionManager) awaitRotation(ctx context.Context, userID, presented string) string {
	deadline := time.Now().Add(m.rotationWait)
	for {
		u, err := m.users.FindByID(ctx, userID)
		if err != nil {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("read rotated refresh token")
			return presented
		}
		if u.RefreshToken != "" && u.RefreshToken != presented {
			return u.RefreshToken
		}
		if !time.Now().Before(deadline) {
			return presented
		}
		t := time.NewTimer(rotationPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return presented
		case <-t.C:
		}
	}
}

// Logout forgets the presented refresh token wherever it is stored and always
// returns the instruction that deletes the cookie. Store failures are logged.
func (m *SessionManager) Logout(ctx context.Context, presented string) CookieInstruction {
	if presented = strings.TrimSpace(presented); presented != "" {
		if _, err := m.users.ClearRefreshToken(ctx, presented); err != nil {
			m.log.Error().Err(err).Msg("clear refresh token on logout")
		}
	}
	return m.cfg.clearCookie()
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (m *SessionManager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("new password is required")
	}
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return storeError(err, "user does not exist")
	}
	if u.PasswordHash == "" || !m.hasher.Verify(oldPassword, u.PasswordHash) {
		return apperr.InvalidCredentials()
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if _, err := m.users.Update(ctx, userID, model.UserUpdate{PasswordHash: &hash}); err != nil {
		return storeError(err, "user does not exist")
	}
	m.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// UpdateEmail moves an account to a new email address.
func (m *SessionManager) UpdateEmail(ctx context.Context, userID, newEmail string) (model.PublicUser, error) {
	newEmail = repository.NormalizeEmail(newEmail)
	if newEmail == "" {
		return model.PublicUser{}, apperr.Validation("email is required")
	}
	owner, err := m.users.FindByEmail(ctx, newEmail)
	switch {
	case err == nil && owner.ID != userID:
		return model.PublicUser{}, apperr.Conflict("this email is already in use")
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return model.PublicUser{}, apperr.Persistence(err)
	}
	u, err := m.users.Update(ctx, userID, model.UserUpdate{Email: &newEmail})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.PublicUser{}, apperr.Conflict("this email is already in use")
		}
		return model.PublicUser{}, storeError(err, "user does not exist")
	}
	return u.Public(), nil
}

// Profile returns the public view of a user.
func (m *SessionManager) Profile(ctx context.Context, userID string) (model.PublicUser, error) {
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, storeError(err, "user does not exist")
	}
	return u.Public(), nil
}

func tokenIdentity(u *model.User) utils.TokenIdentity {
	return utils.TokenIdentity{SubjectID: u.ID, Username: u.Username, Email: u.Email, Role: string(u.Role)}
}
