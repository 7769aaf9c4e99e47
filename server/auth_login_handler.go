package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/smartgreen-auth/backend"
	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/jrsteele09/smartgreen-auth/server/authflowrepo"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// LoginRedirectHandler starts the authorization code flow: it records a new
// authorization request under a fresh state and redirects the browser to the
// provider. Without a {provider} path value the default provider is used.
func (s *Server) LoginRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("provider")
		if name == "" {
			name = s.config.GetDefaultProvider()
		}
		provider, ok := s.config.GetProvider(name)
		if !ok {
			s.writeError(w, r, apperrors.New(apperrors.KindUnknownProvider, fmt.Sprintf("provider %q is not configured", name), nil))
			return
		}

		state, err := generateRandomString(stateBytes)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		now := s.now()
		ttl := s.config.GetStateTTL()
		authReq := &authflowrepo.AuthorizationRequest{
			State:       state,
			Provider:    provider.Name,
			ClientID:    provider.ClientID,
			RedirectURI: provider.RedirectURL,
			Scopes:      provider.Scopes(),
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}

		var opts []oauth2.AuthCodeOption
		if provider.PKCE {
			authReq.CodeVerifier = oauth2.GenerateVerifier()
			opts = append(opts, oauth2.S256ChallengeOption(authReq.CodeVerifier))
		}

		if err := s.authState.Save(r.Context(), authReq); err != nil {
			s.writeError(w, r, apperrors.Wrapf(err, "[server LoginRedirectHandler] saving authorization request"))
			return
		}

		s.setStateCookie(w, r, state, ttl)
		s.metrics.LoginRedirects.WithLabelValues(provider.Name).Inc()
		zerolog.Ctx(r.Context()).Debug().Str("provider", provider.Name).Bool("pkce", provider.PKCE).Msg("redirecting to provider")

		http.Redirect(w, r, backend.ProviderConfig(provider).AuthCodeURL(state, opts...), http.StatusFound)
	}
}
