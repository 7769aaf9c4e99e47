package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the auth gateway
var (
	// Callback errors
	ErrMissingAuthorizationCode = errors.New("missing authorization code")
	ErrOAuthProviderError       = errors.New("oauth provider error")
	ErrInvalidState             = errors.New("invalid state")
	ErrUnknownProvider          = errors.New("unknown provider")

	// Backend errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrBackendUnreachable  = errors.New("auth backend unreachable")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	// Session token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")

	// Store errors
	ErrStateNotFound = errors.New("state not found")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Kind classifies an AuthError for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingAuthorizationCode
	KindOAuthProviderError
	KindInvalidState
	KindUnknownProvider
	KindTokenExchangeFailed
	KindBackendUnreachable
	KindInvalidCredentials
	KindInvalidToken
	KindExpiredToken
)

var kindSentinels = map[Kind]error{
	KindInternal:                 ErrInternal,
	KindMissingAuthorizationCode: ErrMissingAuthorizationCode,
	KindOAuthProviderError:       ErrOAuthProviderError,
	KindInvalidState:             ErrInvalidState,
	KindUnknownProvider:          ErrUnknownProvider,
	KindTokenExchangeFailed:      ErrTokenExchangeFailed,
	KindBackendUnreachable:       ErrBackendUnreachable,
	KindInvalidCredentials:       ErrInvalidCredentials,
	KindInvalidToken:             ErrInvalidToken,
	KindExpiredToken:             ErrExpiredToken,
}

var kindCodes = map[Kind]string{
	KindInternal:                 "server_error",
	KindMissingAuthorizationCode: "missing_authorization_code",
	KindOAuthProviderError:       "oauth_provider_error",
	KindInvalidState:             "invalid_state",
	KindUnknownProvider:          "unknown_provider",
	KindTokenExchangeFailed:      "token_exchange_failed",
	KindBackendUnreachable:       "backend_unreachable",
	KindInvalidCredentials:       "invalid_grant",
	KindInvalidToken:             "unauthorized",
	KindExpiredToken:             "unauthorized",
}

// String returns the wire error code for the kind.
func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// HTTPStatus maps caller faults to 400, auth faults to 401 and backend or
// network faults to 500.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingAuthorizationCode, KindOAuthProviderError, KindInvalidState, KindInvalidCredentials:
		return http.StatusBadRequest
	case KindUnknownProvider:
		return http.StatusNotFound
	case KindInvalidToken, KindExpiredToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// AuthError is the result type of every step of the login flow.
// Code overrides the kind's default wire code (used to echo provider errors).
// Status overrides the kind's default HTTP status when non-zero.
type AuthError struct {
	Kind        Kind
	Code        string
	Description string
	Status      int
	Err         error
}

// New creates an AuthError of the given kind.
func New(kind Kind, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Description: description, Err: cause}
}

// Rejected marks an error as the caller's fault (400) while keeping its kind.
// A backend refusing an invalid or reused authorization code is one.
func Rejected(kind Kind, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Description: description, Status: http.StatusBadRequest, Err: cause}
}

// ProviderError wraps an error reported by the OAuth provider on the callback.
func ProviderError(code, description string) *AuthError {
	return &AuthError{Kind: KindOAuthProviderError, Code: code, Description: description}
}

func (e *AuthError) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *AuthError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// HTTPStatus returns the status override, or the kind's status.
func (e *AuthError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.HTTPStatus()
}

// WireCode returns the value for the "error" field of a JSON error body.
func (e *AuthError) WireCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// KindOf returns the kind of the first AuthError in err's chain, falling back to
// the kind whose sentinel err wraps.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if kind != KindInternal && errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
