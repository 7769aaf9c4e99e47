package config

import (
	"sort"
	"time"
)

type OAuthConfig interface {
	GetBackendURL() string
	GetBackendKey() string
	GetDefaultProvider() string
	GetProvider(name string) (Provider, bool)
	GetProviderNames() []string
	GetSessionTokenTTL() time.Duration
	GetStateTTL() time.Duration
	GetExchangeTimeout() time.Duration
	GetOIDCIssuer() string
	GetOIDCClientID() string
}

// Provider describes one upstream identity provider reachable through the auth backend.
type Provider struct {
	Name         string `koanf:"-"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	ScopeList    string `koanf:"scopes"`
	RedirectURL  string `koanf:"redirect_url"`
	PKCE         bool   `koanf:"pkce"`
}

// Scopes returns the requested scopes in configured order.
func (p Provider) Scopes() []string {
	return splitList(p.ScopeList)
}

type OAuth struct {
	BackendURL      string              `koanf:"backend_url"`
	BackendKey      string              `koanf:"backend_key"`
	DefaultProvider string              `koanf:"default_provider"`
	SessionTokenTTL time.Duration       `koanf:"session_token_ttl"`
	StateTTL        time.Duration       `koanf:"state_ttl"`
	ExchangeTimeout time.Duration       `koanf:"exchange_timeout"`
	OIDCIssuer      string              `koanf:"oidc_issuer"`
	OIDCClientID    string              `koanf:"oidc_client_id"`
	Providers       map[string]Provider `koanf:"providers"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetBackendURL() string {
	return o.BackendURL
}

func (o OAuth) GetBackendKey() string {
	return o.BackendKey
}

func (o OAuth) GetDefaultProvider() string {
	if o.DefaultProvider != "" {
		return o.DefaultProvider
	}
	if names := o.GetProviderNames(); len(names) > 0 {
		return names[0]
	}
	return ""
}

func (o OAuth) GetProvider(name string) (Provider, bool) {
	p, ok := o.Providers[name]
	if !ok {
		return Provider{}, false
	}
	p.Name = name
	return p, true
}

func (o OAuth) GetProviderNames() []string {
	names := make([]string, 0, len(o.Providers))
	for name := range o.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o OAuth) GetSessionTokenTTL() time.Duration {
	if o.SessionTokenTTL <= 0 {
		return 60 * time.Minute
	}
	return o.SessionTokenTTL
}

func (o OAuth) GetStateTTL() time.Duration {
	if o.StateTTL <= 0 {
		return 10 * time.Minute
	}
	return o.StateTTL
}

func (o OAuth) GetExchangeTimeout() time.Duration {
	if o.ExchangeTimeout <= 0 {
		return 10 * time.Second
	}
	return o.ExchangeTimeout
}

func (o OAuth) GetOIDCIssuer() string {
	return o.OIDCIssuer
}

func (o OAuth) GetOIDCClientID() string {
	return o.OIDCClientID
}

// resolveProviders fills endpoint and redirect defaults for every provider.
// The hosted backend proxies the upstream provider, so both endpoints default to it.
func (o *OAuth) resolveProviders(baseURL string) {
	for name, p := range o.Providers {
		if p.AuthURL == "" {
			p.AuthURL = o.BackendURL + "/auth/v1/authorize?provider=" + name
		}
		if p.TokenURL == "" {
			p.TokenURL = o.BackendURL + "/auth/v1/token"
		}
		if p.RedirectURL == "" {
			p.RedirectURL = baseURL + "/auth/callback"
		}
		o.Providers[name] = p
	}
}
