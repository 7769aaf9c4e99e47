package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
)

// SessionToken is the locally minted credential handed to the browser after login.
type SessionToken struct {
	Value     string
	Subject   string
	ExpiresAt time.Time
}

// ExpiresIn returns the remaining lifetime in whole seconds at now.
func (s *SessionToken) ExpiresIn(now time.Time) int {
	return int(s.ExpiresAt.Sub(now).Round(time.Second).Seconds())
}

// Claims are the registered claims carried by a session token: iss, sub, iat, exp.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer mints session tokens.
type Issuer struct {
	signer Signer
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type IssuerOption func(*Issuer)

// WithIssuerClock overrides the issuance clock.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer whose tokens expire ttl after issuance.
func NewIssuer(signer Signer, issuer string, ttl time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	i := &Issuer{
		signer: signer,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for subject expiring at now + TTL.
func (i *Issuer) Issue(subject string) (*SessionToken, error) {
	expiresAt := i.now().Add(i.ttl).Truncate(time.Second)
	value, err := i.Encode(subject, expiresAt)
	if err != nil {
		return nil, err
	}
	return &SessionToken{
		Value:     value,
		Subject:   subject,
		ExpiresAt: expiresAt,
	}, nil
}

// Encode signs a token for subject expiring at expiresAt. The output depends only on
// the signing key, issuer, subject and expiry: equal inputs give identical bytes.
func (i *Issuer) Encode(subject string, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("[token Encode] subject cannot be empty")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-i.ttl)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	value, err := i.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[token Encode] %w", err)
	}
	return value, nil
}

// RevokedChecker is an interface for checking if a token has been revoked
type RevokedChecker interface {
	IsRevoked(rawToken string) bool
}

// Validator verifies session tokens presented on protected requests.
type Validator struct {
	signer  Signer
	issuer  string
	revoked RevokedChecker
	now     func() time.Time
}

type ValidatorOption func(*Validator)

// WithValidatorClock overrides the clock used for the exp check.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// WithRevokedChecker rejects tokens the checker reports as revoked.
func WithRevokedChecker(revoked RevokedChecker) ValidatorOption {
	return func(v *Validator) {
		v.revoked = revoked
	}
}

// NewValidator creates a validator. An empty issuer disables the iss check.
func NewValidator(signer Signer, issuer string, opts ...ValidatorOption) *Validator {
	v := &Validator{
		signer: signer,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the token's subject, or an error wrapping ErrInvalidToken or ErrExpiredToken.
func (v *Validator) Validate(rawToken string) (string, error) {
	claims, err := v.Parse(rawToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse verifies rawToken and returns its claims.
func (v *Validator) Parse(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.New(apperrors.KindInvalidToken, "empty token", nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.signer.GetVerificationKey, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.New(apperrors.KindExpiredToken, "", err)
		}
		return nil, apperrors.New(apperrors.KindInvalidToken, "", err)
	}
	if !token.Valid {
		return nil, apperrors.New(apperrors.KindInvalidToken, "token not valid", nil)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, apperrors.New(apperrors.KindInvalidToken, "missing subject", nil)
	}
	if v.revoked != nil && v.revoked.IsRevoked(rawToken) {
		return nil, apperrors.New(apperrors.KindInvalidToken, "token revoked", nil)
	}
	return claims, nil
}
