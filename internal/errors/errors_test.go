package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   apperrors.Kind
		status int
	}{
		{apperrors.KindMissingAuthorizationCode, http.StatusBadRequest},
		{apperrors.KindOAuthProviderError, http.StatusBadRequest},
		{apperrors.KindInvalidState, http.StatusBadRequest},
		{apperrors.KindInvalidCredentials, http.StatusBadRequest},
		{apperrors.KindUnknownProvider, http.StatusNotFound},
		{apperrors.KindInvalidToken, http.StatusUnauthorized},
		{apperrors.KindExpiredToken, http.StatusUnauthorized},
		{apperrors.KindTokenExchangeFailed, http.StatusInternalServerError},
		{apperrors.KindBackendUnreachable, http.StatusInternalServerError},
		{apperrors.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			require.Equal(t, tt.status, tt.kind.HTTPStatus())
		})
	}
}

func TestAuthError_IsMatchesKindSentinel(t *testing.T) {
	err := apperrors.New(apperrors.KindTokenExchangeFailed, "bad response", stderrors.New("status 400"))
	wrapped := fmt.Errorf("[callback] %w", err)

	require.ErrorIs(t, wrapped, apperrors.ErrTokenExchangeFailed)
	require.NotErrorIs(t, wrapped, apperrors.ErrBackendUnreachable)
	require.Equal(t, apperrors.KindTokenExchangeFailed, apperrors.KindOf(wrapped))
	require.Contains(t, err.Error(), "bad response")
	require.Contains(t, err.Error(), "status 400")
}

func TestAuthError_WireCode(t *testing.T) {
	require.Equal(t, "access_denied", apperrors.ProviderError("access_denied", "user said no").WireCode())
	require.Equal(t, "missing_authorization_code", apperrors.New(apperrors.KindMissingAuthorizationCode, "", nil).WireCode())
	require.Equal(t, "unauthorized", apperrors.New(apperrors.KindExpiredToken, "", nil).WireCode())
}

func TestAuthError_HTTPStatus(t *testing.T) {
	rejected := apperrors.Rejected(apperrors.KindTokenExchangeFailed, "backend returned 400: invalid_grant", nil)
	require.Equal(t, http.StatusBadRequest, rejected.HTTPStatus())
	require.Equal(t, "token_exchange_failed", rejected.WireCode())
	require.ErrorIs(t, rejected, apperrors.ErrTokenExchangeFailed)

	failed := apperrors.New(apperrors.KindTokenExchangeFailed, "backend returned 502", nil)
	require.Equal(t, http.StatusInternalServerError, failed.HTTPStatus())
}

func TestKindOf_Sentinel(t *testing.T) {
	err := apperrors.Wrapf(apperrors.ErrExpiredToken, "[token Validate] subject %s", "user-1")
	require.Equal(t, apperrors.KindExpiredToken, apperrors.KindOf(err))
	require.Equal(t, apperrors.KindInternal, apperrors.KindOf(stderrors.New("boom")))
	require.Nil(t, apperrors.Wrapf(nil, "unused"))
}
