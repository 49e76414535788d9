package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/auth"
	"github.com/agriai/agriai-server/internal/callengine"
	"github.com/agriai/agriai-server/internal/callengine/livekit"
	"github.com/agriai/agriai-server/internal/config"
	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/service/appointments"
	"github.com/agriai/agriai-server/internal/service/orders"
	"github.com/agriai/agriai-server/internal/store"
	"github.com/agriai/agriai-server/internal/store/sqlite"
	transporthttp "github.com/agriai/agriai-server/internal/transport/http"
)

// App wires together store, realtime core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	dispatcher      *core.Dispatcher
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	hubLogger := logger.With().Str("component", "hub").Logger()
	dispatchLogger := logger.With().Str("component", "dispatcher").Logger()
	hub := core.NewHub(&hubLogger)
	dispatcher := core.NewDispatcher(hub, cfg.EventQueueSize, &dispatchLogger)

	var engine callengine.Engine
	if cfg.LiveKit.Enabled {
		engine = livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL)
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit call engine enabled")
	}

	server := transporthttp.NewServer(transporthttp.Services{
		Dispatcher:   dispatcher,
		Auth:         authService,
		Orders:       orders.New(st, dispatcher, logger),
		Appointments: appointments.New(st, dispatcher, engine, logger),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		dispatcher:      dispatcher,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the dispatcher and the HTTP server and blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go a.dispatcher.Run(dispatchCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
