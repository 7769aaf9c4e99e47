package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/jrsteele09/smartgreen-auth/oauthmodel"
	"github.com/rs/zerolog"
)

const (
	// stateCookieName binds an authorization request to the browser that started it
	stateCookieName = "oauth_state"
	// stateBytes is the entropy of a generated state value
	stateBytes = 32
)

// generateRandomString creates a random base64url string from length random bytes
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[server generateRandomString] %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Server) setStateCookie(w http.ResponseWriter, r *http.Request, state string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     RouteCallback,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (s *Server) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     RouteCallback,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// clientIP is the peer address. Forwarding headers are ignored since they are
// client controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status and body for err's kind. Errors that are
// not an AuthError are reported as internal errors without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *apperrors.AuthError
	if !apperrors.As(err, &authErr) {
		authErr = apperrors.New(apperrors.KindInternal, "", err)
	}
	status := authErr.HTTPStatus()

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("kind", authErr.Kind.String()).Int("status", status).Msg("request failed")

	writeJSON(w, status, oauthmodel.ErrorResponse{
		Error:            authErr.WireCode(),
		ErrorDescription: errorDescription(authErr),
	})
}

func errorDescription(e *apperrors.AuthError) string {
	switch e.Kind {
	case apperrors.KindInternal:
		return ""
	case apperrors.KindOAuthProviderError:
		return e.Description
	}
	if e.Description != "" {
		return e.Description
	}
	switch e.Kind {
	case apperrors.KindMissingAuthorizationCode:
		return "Authorization code missing from callback"
	case apperrors.KindInvalidState:
		return "State parameter is not valid for this login attempt"
	case apperrors.KindBackendUnreachable:
		return "Authentication backend unreachable"
	case apperrors.KindTokenExchangeFailed:
		return "Token exchange with the authentication backend failed"
	case apperrors.KindInvalidCredentials:
		return "Invalid credentials"
	}
	return ""
}
