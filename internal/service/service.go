// Package service implements the credential and session flows: login,
// refresh-token rotation, logout, password recovery and OAuth federation.
// Handlers call into it and translate the returned apperr kinds to HTTP.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/config"
	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/repository"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// OAuthStateCookieName is the cookie binding an OAuth flow to the browser that
// started it.
const OAuthStateCookieName = "oauthState"

const oauthStateTTL = 10 * time.Minute

// UserDirectory is the user store. Lookups return repository.ErrNotFound when
// nothing matches; writes return the repository duplicate sentinels on
// uniqueness violations.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*model.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error)
	Insert(ctx context.Context, u *model.User) error
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	ClearRefreshToken(ctx context.Context, token string) (int64, error)
	ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) (bool, error)
}

// Variant names a notification template.
type Variant string

const VariantPasswordReset Variant = "password-reset"

// Notifier delivers out-of-band messages to users.
type Notifier interface {
	Send(ctx context.Context, to string, variant Variant, data map[string]string) error
}

// CookieInstruction tells the transport layer which cookie to set. A negative
// MaxAge deletes the cookie.
type CookieInstruction struct {
	Name     string
	Value    string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   int // seconds
}

// Cookie converts the instruction for net/http. Path is always "/".
func (c CookieInstruction) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     "/",
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		MaxAge:   c.MaxAge,
	}
}

// SessionResult is returned by every operation that establishes or extends a
// session.
type SessionResult struct {
	User            model.PublicUser
	AccessToken     string
	AccessExpiresAt time.Time
	Cookie          CookieInstruction
}

// Settings are the token and cookie parameters of the session flows.
type Settings struct {
	AccessSecret      string
	RefreshSecret     string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	RotationThreshold time.Duration
	ResetTTL          time.Duration
	SecureCookies     bool
}

// SettingsFrom extracts the session settings from the application config.
func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		AccessSecret:      cfg.AccessSecret,
		RefreshSecret:     cfg.RefreshSecret,
		AccessTTL:         cfg.AccessTTL,
		RefreshTTL:        cfg.RefreshTTL,
		RotationThreshold: cfg.RotationThreshold,
		ResetTTL:          cfg.ResetTTL,
		SecureCookies:     cfg.Production(),
	}
}

func (s Settings) refreshCookie(token string) CookieInstruction {
	return CookieInstruction{
		Name:     RefreshCookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.RefreshTTL / time.Second),
	}
}

func (s Settings) clearCookie() CookieInstruction {
	c := s.refreshCookie("")
	c.MaxAge = -1
	return c
}

func (s Settings) stateCookie(state string) CookieInstruction {
	c := CookieInstruction{
		Name:     OAuthStateCookieName,
		Value:    state,
		HTTPOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL / time.Second),
	}
	if state == "" {
		c.MaxAge = -1
	}
	return c
}

// storeError maps a directory error to the taxonomy: not-found becomes
// NotFound with msg, anything else is a persistence failure.
func storeError(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Persistence(err)
}
