package oauthmodel

import (
	"net/url"
	"strconv"
)

// TokenResponse is the body of a successful token request (RFC 6749 section 5.1)
// and the payload of the callback redirect fragment.
type TokenResponse struct {
	// AccessToken is the locally signed session token.
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the remaining lifetime of AccessToken in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the provider's refresh token, passed through untouched.
	// This service never redeems it.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Fragment encodes the response as URL fragment parameters.
func (t TokenResponse) Fragment() string {
	v := url.Values{}
	v.Set("access_token", t.AccessToken)
	v.Set("token_type", t.TokenType)
	v.Set("expires_in", strconv.Itoa(t.ExpiresIn))
	if t.RefreshToken != "" {
		v.Set("refresh_token", t.RefreshToken)
	}
	return v.Encode()
}
