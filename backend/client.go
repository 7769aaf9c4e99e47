// Package backend talks to the hosted authentication backend: it exchanges
// authorization codes and passwords for provider tokens and resolves the user
// identity behind them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/smartgreen-auth/internal/config"
	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"golang.org/x/oauth2"
)

const (
	tokenPath    = "/auth/v1/token"
	userInfoPath = "/auth/v1/user"

	// maxDiagnosticLen caps backend response text copied into errors.
	maxDiagnosticLen = 512
)

// Tokens is the result of a successful exchange with the backend.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Identity     Identity
}

// Client is the auth backend client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	verifier   *oidc.IDTokenVerifier
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every backend call. Its transport
// is wrapped to add the backend API key.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithIDTokenVerifier enables identity resolution from a signed id_token.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[backend NewClient] invalid backend url %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &apiKeyTransport{apiKey: apiKey, base: base}
	c.httpClient = &hc
	return c, nil
}

// NewIDTokenVerifier discovers issuer's keys and returns a verifier for clientID.
func NewIDTokenVerifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[backend NewIDTokenVerifier] discovery for %s: %w", issuer, err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// ProviderConfig builds the oauth2.Config for an upstream provider. Client
// credentials are always sent in the request body: auto-detection would retry a
// rejected exchange with the other style, and authorization codes are single-use.
func ProviderConfig(p config.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ExchangeCode trades an authorization code for tokens and the user's identity.
// It makes exactly one token request.
func (c *Client) ExchangeCode(ctx context.Context, provider config.Provider, code, codeVerifier string) (*Tokens, error) {
	if code == "" {
		return nil, apperrors.New(apperrors.KindMissingAuthorizationCode, "", nil)
	}

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := ProviderConfig(provider).Exchange(c.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return c.tokens(ctx, tok)
}

// PasswordLogin signs a user in with email and password (resource owner grant).
func (c *Client) PasswordLogin(ctx context.Context, email, password string) (*Tokens, error) {
	if email == "" || password == "" {
		return nil, apperrors.New(apperrors.KindInvalidCredentials, "username and password are required", nil)
	}

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + tokenPath + "?grant_type=password",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := conf.PasswordCredentialsToken(c.clientContext(ctx), email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			(re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized) {
			return nil, apperrors.New(apperrors.KindInvalidCredentials, "Invalid credentials", err)
		}
		return nil, classifyTokenError(err)
	}
	return c.tokens(ctx, tok)
}

func (c *Client) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) tokens(ctx context.Context, tok *oauth2.Token) (*Tokens, error) {
	identity, err := c.resolveIdentity(ctx, tok)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		Identity:     *identity,
	}, nil
}

// classifyTokenError separates backend rejections and malformed responses
// (TokenExchangeFailed) from transport faults (BackendUnreachable). A 400 or 401
// from the token endpoint means the code was refused and is answered with 400.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		description := fmt.Sprintf("backend returned %d: %s", status, retrieveDiagnostic(re))
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			// The backend refused the code itself (expired, reused or bogus).
			return apperrors.Rejected(apperrors.KindTokenExchangeFailed, description, err)
		}
		return apperrors.New(apperrors.KindTokenExchangeFailed, description, err)
	}
	if isTransportError(err) {
		return apperrors.New(apperrors.KindBackendUnreachable, "", err)
	}
	return apperrors.New(apperrors.KindTokenExchangeFailed, "malformed backend response", err)
}

func retrieveDiagnostic(re *oauth2.RetrieveError) string {
	switch {
	case re.ErrorCode != "" && re.ErrorDescription != "":
		return re.ErrorCode + ": " + re.ErrorDescription
	case re.ErrorCode != "":
		return re.ErrorCode
	default:
		return truncate(strings.TrimSpace(string(re.Body)))
	}
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func truncate(s string) string {
	if len(s) > maxDiagnosticLen {
		return s[:maxDiagnosticLen] + "..."
	}
	return s
}

// apiKeyTransport adds the backend's project key to every request.
type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.apiKey == "" {
		return t.base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("apikey", t.apiKey)
	return t.base.RoundTrip(r)
}
