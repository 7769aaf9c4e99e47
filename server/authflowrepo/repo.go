package authflowrepo

import (
	"context"
	"time"
)

// AuthorizationRequest is one login attempt, keyed by its state value, held
// between the redirect to the provider and the provider's callback.
type AuthorizationRequest struct {
	State        string    `json:"state"`
	Provider     string    `json:"provider"`
	ClientID     string    `json:"client_id"`
	RedirectURI  string    `json:"redirect_uri"`
	Scopes       []string  `json:"scopes"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the request can no longer be completed at now.
func (a *AuthorizationRequest) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Repo stores authorization requests until the callback consumes them.
// Consume is single-use: a second call with the same state fails.
type Repo interface {
	Save(ctx context.Context, req *AuthorizationRequest) error
	Consume(ctx context.Context, state string) (*AuthorizationRequest, error)
}
