package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/jrsteele09/smartgreen-auth/oauthmodel"
	"github.com/jrsteele09/smartgreen-auth/server/authflowrepo"
	"github.com/rs/zerolog"
)

// OAuthCallbackHandler completes the authorization code flow. Provider errors,
// a missing code and a bad state are all answered before the backend is contacted.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		params := oauthmodel.ParseCallbackParameters(r)
		logger := zerolog.Ctx(r.Context())

		if params.HasError() {
			s.discardState(r, params.State)
			s.failCallback(w, r, apperrors.ProviderError(params.Error, params.ErrorDescription))
			return
		}

		if params.Code == "" {
			s.discardState(r, params.State)
			s.failCallback(w, r, apperrors.New(apperrors.KindMissingAuthorizationCode, "", nil))
			return
		}

		authReq, err := s.verifyState(r, params.State)
		if err != nil {
			s.failCallback(w, r, err)
			return
		}

		providerName := s.config.GetDefaultProvider()
		codeVerifier := ""
		if authReq != nil {
			providerName = authReq.Provider
			codeVerifier = authReq.CodeVerifier
		}
		provider, ok := s.config.GetProvider(providerName)
		if !ok {
			s.failCallback(w, r, apperrors.New(apperrors.KindUnknownProvider, fmt.Sprintf("provider %q is not configured", providerName), nil))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetExchangeTimeout())
		defer cancel()

		start := time.Now()
		tokens, err := s.backend.ExchangeCode(ctx, provider, params.Code, codeVerifier)
		s.metrics.ExchangeLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			s.failCallback(w, r, err)
			return
		}

		session, err := s.issuer.Issue(tokens.Identity.ID)
		if err != nil {
			s.failCallback(w, r, apperrors.Wrapf(err, "[server OAuthCallbackHandler] issuing session token"))
			return
		}
		s.metrics.TokensIssued.Inc()
		s.metrics.Callbacks.WithLabelValues("success").Inc()
		logger.Info().Str("provider", provider.Name).Str("subject", session.Subject).Msg("session token issued")

		resp := oauthmodel.TokenResponse{
			AccessToken:  session.Value,
			TokenType:    oauthmodel.TokenTypeBearer,
			ExpiresIn:    session.ExpiresIn(s.now()),
			RefreshToken: tokens.RefreshToken,
		}
		s.clearStateCookie(w, r)
		w.Header().Set("Referrer-Policy", "no-referrer")
		http.Redirect(w, r, s.config.GetFrontendURL()+frontendCallbackPath+"#"+resp.Fragment(), http.StatusFound)
	}
}

// verifyState consumes the authorization request for state and checks it was
// started by this browser. When state is not required a missing or unknown
// state is tolerated and nil is returned.
func (s *Server) verifyState(r *http.Request, state string) (*authflowrepo.AuthorizationRequest, error) {
	if !s.config.GetRequireState() {
		if state == "" {
			return nil, nil
		}
		authReq, err := s.authState.Consume(r.Context(), state)
		if err != nil {
			return nil, nil
		}
		return authReq, nil
	}

	if state == "" {
		return nil, apperrors.New(apperrors.KindInvalidState, "state parameter missing", nil)
	}

	// Consumed before any other check so a state value can never be tried twice.
	authReq, err := s.authState.Consume(r.Context(), state)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrStateNotFound) {
			return nil, apperrors.New(apperrors.KindInvalidState, "state is unknown or no longer valid", err)
		}
		return nil, apperrors.Wrapf(err, "[server verifyState] consuming state")
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return nil, apperrors.New(apperrors.KindInvalidState, "state does not match this browser", nil)
	}
	return authReq, nil
}

// discardState drops the attempt's state record so it cannot be replayed.
func (s *Server) discardState(r *http.Request, state string) {
	if state != "" {
		_, _ = s.authState.Consume(r.Context(), state)
	}
}

// failCallback ends the login attempt: the state cookie is cleared and the error answered.
func (s *Server) failCallback(w http.ResponseWriter, r *http.Request, err error) {
	s.clearStateCookie(w, r)
	s.metrics.Callbacks.WithLabelValues(apperrors.KindOf(err).String()).Inc()
	s.writeError(w, r, err)
}
