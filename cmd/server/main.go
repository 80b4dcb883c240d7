// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/castline/internal/api"
	"github.com/tomtom215/castline/internal/auth"
	"github.com/tomtom215/castline/internal/authz"
	"github.com/tomtom215/castline/internal/chat"
	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/notify"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/push"
	"github.com/tomtom215/castline/internal/readstate"
	"github.com/tomtom215/castline/internal/store"
	"github.com/tomtom215/castline/internal/supervisor"
	"github.com/tomtom215/castline/internal/supervisor/services"
	ws "github.com/tomtom215/castline/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Castline exited with error")
	}
}

//nolint:gocyclo // sequential wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("store_backend", cfg.Store.Backend).
		Bool("push_enabled", cfg.Push.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Castline")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with a wildcard origin; set CORS_ORIGINS in production")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path, cfg.Store.SyncWrites)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	verifier, err := auth.NewTokenVerifier(&cfg.Security)
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(&cfg.Security.Casbin))
	if err != nil {
		return fmt.Errorf("authorization: %w", err)
	}
	defer enforcer.Close()

	// Delivery core
	hub := ws.NewHub()
	registry := presence.NewRegistry(st)
	dispatcher := notify.NewDispatcher(notify.Config{
		Store:    st,
		Registry: registry,
		Emitter:  hub,
		Sender:   push.New(&cfg.Push),
	})
	relay := chat.NewRelay(st, registry, hub, dispatcher)
	reads := readstate.NewSynchronizer(st, registry, hub)
	gateway := ws.NewGateway(ws.GatewayDeps{
		Hub:      hub,
		Presence: registry,
		Verifier: verifier,
		Chat:     relay,
		Reads:    reads,
	}, &cfg.WebSocket, cfg.Security.CORSOrigins)

	events, err := initEvents(context.Background(), &cfg.NATS, dispatcher)
	if err != nil {
		return fmt.Errorf("event stream: %w", err)
	}

	deps := api.HandlerDeps{
		Store:    st,
		Notifier: dispatcher,
		Reads:    reads,
		Chat:     relay,
		Presence: registry,
		Clients:  hub,
	}
	if events != nil {
		deps.Publisher = events.publisher
		deps.Consumer = events.consumer
	}
	router := api.NewRouter(
		api.NewHandler(deps),
		auth.NewMiddleware(verifier, st, cfg.Security.RequireSession),
		authz.NewMiddleware(enforcer),
		gateway,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	if events != nil {
		events.addTo(tree, cfg.Server.ShutdownTimeout)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Castline listening")
	err = tree.Serve(ctx)

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Castline stopped")
	return nil
}
