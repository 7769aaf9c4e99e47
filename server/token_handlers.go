package server

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/jrsteele09/smartgreen-auth/oauthmodel"
	"github.com/rs/zerolog"
)

// PasswordTokenHandler signs a user in with username and password through the
// backend and answers with a session token.
func (s *Server) PasswordTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, apperrors.New(apperrors.KindInvalidCredentials, "Malformed form body", err))
			return
		}
		if gt := r.PostForm.Get("grant_type"); gt != "" && gt != string(oauthmodel.PasswordGrant) {
			writeJSON(w, http.StatusBadRequest, oauthmodel.ErrorResponse{
				Error:            "unsupported_grant_type",
				ErrorDescription: "Only the password grant is supported",
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetExchangeTimeout())
		defer cancel()

		start := time.Now()
		tokens, err := s.backend.PasswordLogin(ctx, r.PostForm.Get("username"), r.PostForm.Get("password"))
		s.metrics.ExchangeLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInvalidCredentials {
				err = apperrors.New(apperrors.KindInvalidCredentials, "Invalid credentials", err)
			}
			s.writeError(w, r, err)
			return
		}

		session, err := s.issuer.Issue(tokens.Identity.ID)
		if err != nil {
			s.writeError(w, r, apperrors.Wrapf(err, "[server PasswordTokenHandler] issuing session token"))
			return
		}
		s.metrics.TokensIssued.Inc()
		zerolog.Ctx(r.Context()).Info().Str("subject", session.Subject).Msg("session token issued for password login")

		writeJSON(w, http.StatusOK, oauthmodel.TokenResponse{
			AccessToken:  session.Value,
			TokenType:    oauthmodel.TokenTypeBearer,
			ExpiresIn:    session.ExpiresIn(s.now()),
			RefreshToken: tokens.RefreshToken,
		})
	}
}

// LogoutHandler ends the browser's login. A presented, still valid session
// token is denylisted until it expires when revocation is enabled.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := bearerToken(r); ok && s.config.GetRevokeOnLogout() && s.denylist != nil {
			if claims, err := s.validator.Parse(raw); err == nil {
				s.denylist.Revoke(raw, claims.ExpiresAt.Time)
				zerolog.Ctx(r.Context()).Info().Str("subject", claims.Subject).Msg("session token revoked")
			}
		}
		s.clearStateCookie(w, r)
		http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
	}
}
