package config

type SecurityConfig interface {
	GetSigningSecret() string
	GetTokenIssuer() string
	GetRequireState() bool
	GetRevokeOnLogout() bool
	GetEnableRateLimiting() bool
	GetRateLimit() (rps float64, burst int)
}

type RateLimit struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

type Security struct {
	SigningSecret  string    `koanf:"signing_secret"`
	TokenIssuer    string    `koanf:"token_issuer"`
	RequireState   bool      `koanf:"require_state"`
	RevokeOnLogout bool      `koanf:"revoke_on_logout"`
	RateLimit      RateLimit `koanf:"rate_limit"`
}

var _ SecurityConfig = Security{}

func (s Security) GetSigningSecret() string {
	return s.SigningSecret
}

func (s Security) GetTokenIssuer() string {
	return s.TokenIssuer
}

func (s Security) GetRequireState() bool {
	return s.RequireState
}

func (s Security) GetRevokeOnLogout() bool {
	return s.RevokeOnLogout
}

func (s Security) GetEnableRateLimiting() bool {
	return s.RateLimit.Enabled
}

func (s Security) GetRateLimit() (float64, int) {
	rps, burst := s.RateLimit.RPS, s.RateLimit.Burst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return rps, burst
}
