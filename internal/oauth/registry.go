package oauth // oauth resolves configured providers by name

import (
	"sort"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/config"
)

// Registry resolves provider names to configured clients. Providers whose
// credentials are missing stay listed and fail with a configuration error
// when used.
type Registry struct {
	providers map[string]Provider
	errs      map[string]error
}

// NewRegistry builds the discord and github clients from cfg.
func NewRegistry(cfg config.Config, opts ...Option) *Registry {
	opts = append([]Option{WithTimeout(cfg.ProviderTimeout)}, opts...)
	r := &Registry{providers: map[string]Provider{}, errs: map[string]error{}}
	for _, desc := range []Descriptor{Discord(cfg.Discord), GitHub(cfg.GitHub)} {
		c, err := New(desc, cfg.OAuthCallbackURL, opts...)
		if err != nil {
			r.errs[desc.Name] = err
			continue
		}
		r.providers[desc.Name] = c
	}
	return r
}

// Client returns the provider registered under name.
func (r *Registry) Client(name string) (Provider, error) {
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if err, ok := r.errs[name]; ok {
		return nil, err
	}
	return nil, apperr.Configuration("invalid OAuth provider")
}

// Enabled lists the providers that are ready to use.
func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
