package service // service signs users in through OAuth providers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/oauth"
	"github.com/iliyamo/authcore/internal/repository"
	"github.com/iliyamo/authcore/internal/utils"
)

// Providers resolves an OAuth provider by name.
type Providers interface {
	Client(name string) (oauth.Provider, error)
}

// AuthorizationRequest is the consent URL of a provider and the state cookie
// the browser must carry back to the callback.
type AuthorizationRequest struct {
	URL    string
	Cookie CookieInstruction
}

// CallbackOutcome is where to send the browser after an OAuth callback, plus
// the refresh cookie on success. ClearState always expires the state cookie.
type CallbackOutcome struct {
	RedirectURL string
	Cookie      *CookieInstruction
	ClearState  CookieInstruction
}

// Federation signs users in through external identity providers. A provider
// identity maps to exactly one local account, created on first sign-in.
type Federation struct {
	providers Providers
	users     UserDirectory
	hasher    *utils.Hasher
	sessions  *SessionManager
	clientURL string
	log       zerolog.Logger
}

func NewFederation(providers Providers, users UserDirectory, hasher *utils.Hasher,
	sessions *SessionManager, clientURL string, log zerolog.Logger) *Federation {
	return &Federation{
		providers: providers,
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
	}
}

// AuthorizationURL returns the consent URL of the named provider with a fresh
// random state, and the cookie that remembers it.
func (f *Federation) AuthorizationURL(provider string) (AuthorizationRequest, error) {
	p, err := f.providers.Client(provider)
	if err != nil {
		return AuthorizationRequest{}, err
	}
	state, err := utils.RandomSecret(16)
	if err != nil {
		return AuthorizationRequest{}, apperr.Internal(err)
	}
	return AuthorizationRequest{
		URL:    p.AuthorizationURL(state),
		Cookie: f.sessions.cfg.stateCookie(state),
	}, nil
}

// Callback completes the authorization-code flow. state is the value the
// provider echoed back and expectedState the one from the browser's state
// cookie. It never returns an error: failures become a redirect to the client
// error page without a session cookie.
func (f *Federation) Callback(ctx context.Context, provider, code, state, expectedState string) CallbackOutcome {
	expire := f.sessions.cfg.stateCookie("")
	res, err := f.signIn(ctx, provider, code, state, expectedState)
	if err != nil {
		f.log.Warn().Err(err).Str("provider", provider).Msg("oauth callback failed")
		return CallbackOutcome{RedirectURL: f.failureURL(apperr.MessageOf(err)), ClearState: expire}
	}
	target, err := f.successURL(res)
	if err != nil {
		return CallbackOutcome{RedirectURL: f.failureURL("an internal error occurred"), ClearState: expire}
	}
	return CallbackOutcome{RedirectURL: target, Cookie: &res.Cookie, ClearState: expire}
}

func (f *Federation) signIn(ctx context.Context, provider, code, state, expectedState string) (*SessionResult, error) {
	if provider == "" {
		return nil, apperr.Validation("provider missing")
	}
	if code == "" {
		return nil, apperr.Validation("authorization code missing")
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return nil, apperr.Unauthorized("invalid OAuth state")
	}
	p, err := f.providers.Client(provider)
	if err != nil {
		return nil, err
	}
	accessToken, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	id, err := p.FetchIdentity(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	u, err := f.findOrCreate(ctx, p.Name(), id)
	if err != nil {
		return nil, err
	}
	return f.sessions.StartSession(ctx, u)
}

// findOrCreate returns the account linked to id, creating it on first use.
func (f *Federation) findOrCreate(ctx context.Context, provider string, id oauth.Identity) (*model.User, error) {
	u, err := f.users.FindByProvider(ctx, provider, id.ProviderID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Persistence(err)
	}

	// The placeholder password is never disclosed, so it cannot be used to log in.
	secret, err := utils.RandomSecret(32)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	hash, err := f.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}
	username := id.Username
	if username == "" {
		username = provider + "-" + id.ProviderID
	}
	u = &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        id.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Provider:     provider,
		ProviderID:   id.ProviderID,
	}

	err = f.users.Insert(ctx, u)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		u.Username = username + "-" + provider
		err = f.users.Insert(ctx, u)
	}
	switch {
	case err == nil:
		f.log.Info().Str("user_id", u.ID).Str("provider", provider).Msg("federated user created")
		return u, nil
	case errors.Is(err, repository.ErrDuplicateProvider):
		// A concurrent callback created the same identity.
		existing, ferr := f.users.FindByProvider(ctx, provider, id.ProviderID)
		if ferr != nil {
			return nil, apperr.Persistence(ferr)
		}
		return existing, nil
	case repository.IsDuplicate(err):
		return nil, apperr.Conflict("an account with this email or username already exists")
	default:
		return nil, apperr.Persistence(err)
	}
}

func (f *Federation) successURL(res *SessionResult) (string, error) {
	user, err := json.Marshal(res.User)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("accessToken", res.AccessToken)
	q.Set("user", string(user))
	return f.clientURL + "/oauth/success?" + q.Encode(), nil
}

func (f *Federation) failureURL(message string) string {
	return f.clientURL + "/oauth/error?message=" + url.QueryEscape(message)
}
