package oauth // oauth describes the supported identity providers

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/authcore/internal/config"
)

// Encoding selects how the authorization-code exchange body is sent.
type Encoding string

const (
	EncodingForm Encoding = "form" // application/x-www-form-urlencoded
	EncodingJSON Encoding = "json" // application/json
)

// Identity is a provider user normalized to the fields the directory stores.
type Identity struct {
	ProviderID string
	Email      string
	Username   string
}

// Descriptor is the static description of one provider.
type Descriptor struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserURL      string
	EmailsURL    string // optional secondary endpoint listing the user's emails
	Scopes       []string
	Encoding     Encoding
	AuthScheme   string // Authorization header scheme for API calls
	Normalize    func(raw []byte) (Identity, error)
}

// Discord describes Discord's OAuth2 endpoints under cfg.BaseURL.
func Discord(cfg config.DiscordConfig) Descriptor {
	return Descriptor{
		Name:         "discord",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthURL:      cfg.BaseURL + "/api/oauth2/authorize",
		TokenURL:     cfg.BaseURL + "/api/oauth2/token",
		UserURL:      cfg.BaseURL + "/api/users/@me",
		Scopes:       []string{"identify", "email"},
		Encoding:     EncodingForm,
		AuthScheme:   "Bearer",
		Normalize:    normalizeDiscord,
	}
}

// GitHub describes GitHub's OAuth endpoints. GitHub omits private emails from
// the user payload, so the verified address comes from /user/emails.
func GitHub(cfg config.GitHubConfig) Descriptor {
	return Descriptor{
		Name:         "github",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		UserURL:      cfg.APIURL + "/user",
		EmailsURL:    cfg.APIURL + "/user/emails",
		Scopes:       []string{"read:user", "user:email"},
		Encoding:     EncodingJSON,
		AuthScheme:   "token",
		Normalize:    normalizeGitHub,
	}
}

type discordUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func normalizeDiscord(raw []byte) (Identity, error) {
	var u discordUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Identity{}, fmt.Errorf("decode discord user: %w", err)
	}
	if u.ID == "" {
		return Identity{}, fmt.Errorf("discord user has no id")
	}
	return Identity{ProviderID: u.ID, Email: u.Email, Username: u.Username}, nil
}

type githubUser struct {
	ID    json.Number `json:"id"`
	Login string      `json:"login"`
	Email *string     `json:"email"`
}

func normalizeGitHub(raw []byte) (Identity, error) {
	var u githubUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return Identity{}, fmt.Errorf("decode github user: %w", err)
	}
	if u.ID == "" {
		return Identity{}, fmt.Errorf("github user has no id")
	}
	id := Identity{ProviderID: u.ID.String(), Username: u.Login}
	if u.Email != nil {
		id.Email = *u.Email
	}
	return id, nil
}

type providerEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// selectVerifiedEmail prefers the primary verified address, then any verified
// one. It returns "" when none is verified.
func selectVerifiedEmail(emails []providerEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified && e.Email != "" {
			return e.Email
		}
	}
	return ""
}
