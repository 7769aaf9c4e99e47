package oauthmodel

// GrantType is the OAuth 2.0 grant used at a token endpoint.
type GrantType string

const (
	// PasswordGrant signs a user in with username and password.
	PasswordGrant GrantType = "password"
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"
