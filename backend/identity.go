package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"golang.org/x/oauth2"
)

// Identity is the user as reported by the backend. It is read-only input.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// backendUser is the backend's user record, embedded in token responses and
// returned by the user endpoint.
type backendUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
}

func (u backendUser) identity() *Identity {
	name := u.UserMetadata.FullName
	if name == "" {
		name = u.UserMetadata.Name
	}
	if name == "" {
		name = u.Email
	}
	return &Identity{ID: u.ID, Email: u.Email, Name: name}
}

// resolveIdentity tries, in order: the user object embedded in the token
// response, a verified id_token, then the backend user endpoint.
func (c *Client) resolveIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	if id, ok := embeddedUser(tok); ok {
		return id, nil
	}

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" && c.verifier != nil {
		return c.identityFromIDToken(ctx, rawIDToken)
	}

	return c.fetchUser(ctx, tok.AccessToken)
}

func embeddedUser(tok *oauth2.Token) (*Identity, bool) {
	raw, ok := tok.Extra("user").(map[string]interface{})
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var u backendUser
	if err := json.Unmarshal(data, &u); err != nil || u.ID == "" {
		return nil, false
	}
	return u.identity(), true
}

func (c *Client) identityFromIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "id_token verification failed", err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "id_token claims unreadable", err)
	}
	if claims.Sub == "" {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "id_token has no subject", nil)
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	return &Identity{ID: claims.Sub, Email: claims.Email, Name: name}, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "backend response missing access token", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+userInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("[backend fetchUser] %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.KindBackendUnreachable, "user lookup", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.New(apperrors.KindBackendUnreachable, "user lookup", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed,
			fmt.Sprintf("user lookup returned %d: %s", resp.StatusCode, truncate(string(body))), nil)
	}

	var u backendUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "malformed user response", err)
	}
	if u.ID == "" {
		return nil, apperrors.New(apperrors.KindTokenExchangeFailed, "backend response missing user identity", nil)
	}
	return u.identity(), nil
}
