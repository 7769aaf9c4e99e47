package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/smartgreen-auth/backend"
	"github.com/jrsteele09/smartgreen-auth/internal/config"
	"github.com/jrsteele09/smartgreen-auth/internal/metrics"
	"github.com/jrsteele09/smartgreen-auth/server/authflowrepo"
	"github.com/jrsteele09/smartgreen-auth/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// AuthBackend is the hosted authentication backend as seen by the handlers.
type AuthBackend interface {
	ExchangeCode(ctx context.Context, provider config.Provider, code, codeVerifier string) (*backend.Tokens, error)
	PasswordLogin(ctx context.Context, email, password string) (*backend.Tokens, error)
}

// Dependencies are the collaborators the server is built from. Denylist and
// Metrics are optional.
type Dependencies struct {
	Backend   AuthBackend
	AuthState authflowrepo.Repo
	Issuer    *token.Issuer
	Validator *token.Validator
	Denylist  token.Denylist
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	logger    zerolog.Logger
	backend   AuthBackend
	authState authflowrepo.Repo
	issuer    *token.Issuer
	validator *token.Validator
	denylist  token.Denylist
	metrics   *metrics.Metrics
	limiter   *ipRateLimiter
	now       func() time.Time
}

type Option func(*Server)

// WithClock overrides the clock used to stamp authorization requests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(cfg config.Config, deps Dependencies, opts ...Option) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		logger:    deps.Logger,
		backend:   deps.Backend,
		authState: deps.AuthState,
		issuer:    deps.Issuer,
		validator: deps.Validator,
		denylist:  deps.Denylist,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.GetEnableRateLimiting() {
		rps, burst := cfg.GetRateLimit()
		s.limiter = newIPRateLimiter(rps, burst)
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.GlobalMiddleware()...)
	s.logRoutes()

	return s, nil
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Backend == nil {
		errs = append(errs, errors.New("auth backend is required"))
	}
	if d.AuthState == nil {
		errs = append(errs, errors.New("authorization state repo is required"))
	}
	if d.Issuer == nil {
		errs = append(errs, errors.New("session token issuer is required"))
	}
	if d.Validator == nil {
		errs = append(errs, errors.New("session token validator is required"))
	}
	return errors.Join(errs...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return nil
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	s.logger.Debug().Str("allowed_origins", s.config.GetAllowedOrigins().String()).Msg("cors configured")
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			s.logger.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
