package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/smartgreen-auth/backend"
	"github.com/jrsteele09/smartgreen-auth/internal/config"
	"github.com/jrsteele09/smartgreen-auth/internal/logger"
	"github.com/jrsteele09/smartgreen-auth/internal/metrics"
	"github.com/jrsteele09/smartgreen-auth/server"
	"github.com/jrsteele09/smartgreen-auth/server/authflowrepo"
	"github.com/jrsteele09/smartgreen-auth/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	cfg, err := config.Load(startCtx)
	if err != nil {
		return err
	}
	lg := logger.New(cfg.GetLogLevel(), cfg.GetEnv())
	log.Logger = lg
	displayAppname(cfg.GetAppName())

	authState, err := newAuthStateRepo(startCtx, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(lg, authState)

	client, err := newBackendClient(startCtx, cfg)
	if err != nil {
		return err
	}

	signer, err := token.NewHMACSigner(cfg.GetSigningSecret())
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(signer, cfg.GetTokenIssuer(), cfg.GetSessionTokenTTL())
	if err != nil {
		return err
	}
	denylist := token.NewInMemoryDenylist()
	defer closeQuietly(lg, denylist)
	validator := token.NewValidator(signer, cfg.GetTokenIssuer(), token.WithRevokedChecker(denylist))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(cfg, server.Dependencies{
		Backend:   client,
		AuthState: authState,
		Issuer:    issuer,
		Validator: validator,
		Denylist:  denylist,
		Metrics:   metrics.New(reg),
		Logger:    lg,
	})
	if err != nil {
		return err
	}
	defer closeQuietly(lg, srv)

	httpServer := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(lg, httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newAuthStateRepo(ctx context.Context, cfg config.Config) (authflowrepo.Repo, error) {
	switch cfg.GetStoreDriver() {
	case config.StoreDriverRedis:
		client, err := authflowrepo.NewRedisClient(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		return authflowrepo.NewRedisRepo(client, cfg.GetStoreKeyPrefix()), nil
	default:
		return authflowrepo.NewInMemoryRepo(), nil
	}
}

func newBackendClient(ctx context.Context, cfg config.Config) (*backend.Client, error) {
	var opts []backend.Option
	if issuer := cfg.GetOIDCIssuer(); issuer != "" {
		verifier, err := backend.NewIDTokenVerifier(ctx, issuer, cfg.GetOIDCClientID())
		if err != nil {
			return nil, err
		}
		opts = append(opts, backend.WithIDTokenVerifier(verifier))
	}
	return backend.NewClient(cfg.GetBackendURL(), cfg.GetBackendKey(), opts...)
}

func listenAndServe(lg zerolog.Logger, server *http.Server) error {
	lg.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func closeQuietly(lg zerolog.Logger, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		lg.Warn().Err(err).Msg("close failed")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
