// Package oauth drives the authorization-code flow against external identity
// providers. Each provider is described by a static Descriptor; the Client
// turns it into an authorization URL, a code exchange and an identity fetch.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/iliyamo/authcore/internal/apperr"
)

const defaultTimeout = 5 * time.Second

// maxBody bounds how much of a provider response is read.
const maxBody = 1 << 20

// Provider is one configured identity provider.
type Provider interface {
	Name() string
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchIdentity(ctx context.Context, accessToken string) (Identity, error)
}

// Client talks to a single provider.
type Client struct {
	desc Descriptor
	conf *oauth2.Config
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every provider call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New builds a Client for desc. The redirect URI registered with the provider
// is callbackURL with ?provider=<name> appended.
func New(desc Descriptor, callbackURL string, opts ...Option) (*Client, error) {
	if desc.ClientID == "" || desc.ClientSecret == "" {
		return nil, apperr.Configuration(fmt.Sprintf("%s client credentials are not configured", desc.Name))
	}
	if callbackURL == "" {
		return nil, apperr.Configuration("oauth callback URL is not configured")
	}
	redirect, err := url.Parse(callbackURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "oauth callback URL is invalid", err)
	}
	q := redirect.Query()
	q.Set("provider", desc.Name)
	redirect.RawQuery = q.Encode()

	c := &Client{
		desc: desc,
		conf: &oauth2.Config{
			ClientID:     desc.ClientID,
			ClientSecret: desc.ClientSecret,
			RedirectURL:  redirect.String(),
			Scopes:       desc.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   desc.AuthURL,
				TokenURL:  desc.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return c.desc.Name }

// RedirectURL is the callback registered with the provider.
func (c *Client) RedirectURL() string { return c.conf.RedirectURL }

// AuthorizationURL returns the provider consent URL carrying client_id,
// redirect_uri, response_type=code, scope and state.
func (c *Client) AuthorizationURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a provider access token. It is
// never retried.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", apperr.Validation("authorization code is required")
	}
	var (
		token string
		err   error
	)
	switch c.desc.Encoding {
	case EncodingJSON:
		token, err = c.exchangeJSON(ctx, code)
	default:
		token, err = c.exchangeForm(ctx, code)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindTokenExchange, "failed to fetch access token", err)
	}
	return token, nil
}

func (c *Client) exchangeForm(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) exchangeJSON(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     c.conf.ClientID,
		"client_secret": c.conf.ClientSecret,
		"code":          code,
		"redirect_uri":  c.conf.RedirectURL,
		"grant_type":    "authorization_code",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.Endpoint.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error != "" {
		return "", fmt.Errorf("token endpoint: %s: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	return tr.AccessToken, nil
}

// FetchIdentity reads the provider user and normalizes it. When the payload
// carries no email and the provider lists emails separately, the primary
// verified address is used, falling back to any verified one.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	raw, err := c.get(ctx, c.desc.UserURL, accessToken)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindIdentityFetch, "failed to fetch user data", err)
	}
	id, err := c.desc.Normalize(raw)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindIdentityFetch, "failed to fetch user data", err)
	}
	if id.Email != "" {
		return id, nil
	}
	if c.desc.EmailsURL == "" {
		return Identity{}, apperr.New(apperr.KindNoVerifiedEmail,
			fmt.Sprintf("%s account has no email address", c.desc.Name))
	}

	raw, err = c.get(ctx, c.desc.EmailsURL, accessToken)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindIdentityFetch, "failed to fetch user emails", err)
	}
	var emails []providerEmail
	if err := json.Unmarshal(raw, &emails); err != nil {
		return Identity{}, apperr.Wrap(apperr.KindIdentityFetch, "failed to fetch user emails", err)
	}
	id.Email = selectVerifiedEmail(emails)
	if id.Email == "" {
		return Identity{}, apperr.New(apperr.KindNoVerifiedEmail,
			fmt.Sprintf("no verified email found for %s user", c.desc.Name))
	}
	return id, nil
}

func (c *Client) get(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.desc.AuthScheme+" "+accessToken)
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}
	return body, nil
}
