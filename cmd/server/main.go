// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/tomtom215/fleetlink/docs" // Register swagger docs
	"github.com/tomtom215/fleetlink/internal/api"
	"github.com/tomtom215/fleetlink/internal/audit"
	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/authz"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/livestate"
	"github.com/tomtom215/fleetlink/internal/livestate/redismirror"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/registry"
	"github.com/tomtom215/fleetlink/internal/supervisor"
	"github.com/tomtom215/fleetlink/internal/supervisor/services"
	fleetsync "github.com/tomtom215/fleetlink/internal/sync"
	ws "github.com/tomtom215/fleetlink/internal/websocket"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fleetlink",
		Short:         "Multi-vendor vehicle telemetry integration server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := run(cmd.Context(), cfg); err != nil {
				logging.Error().Err(err).Msg("Server failed")
				return err
			}
			return nil
		},
	}
	cmd.AddCommand(newTokenCommand())
	return cmd
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

//nolint:gocyclo // sequential startup
func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("store", cfg.Database.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats", cfg.NATS.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Msg("Starting Fleetlink")

	st, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	var mirror *redismirror.Mirror
	if cfg.Redis.Enabled {
		mirror, err = redismirror.New(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = mirror.Close() }()
	}

	liveOpts := livestate.Options{
		SubscriberBuffer: cfg.Live.SubscriberBuffer,
		MirrorQueue:      cfg.Live.MirrorQueue,
	}
	var geo api.GeoIndex
	if mirror != nil {
		liveOpts.Mirror = mirror
		geo = mirror
	}
	cache := livestate.New(liveOpts)
	defer func() { _ = cache.Close() }()

	events, err := initEventBus(ctx, &cfg.NATS)
	if err != nil {
		return err
	}

	reg := registry.New(providerOptions(cfg.Sync))
	engine := fleetsync.New(reg, st, cache, events.bus)

	n, err := restoreProviders(ctx, st, reg, engine, cfg.Providers)
	if err != nil {
		return err
	}
	logging.Info().Int("providers", n).Msg("Providers restored")

	authenticator, err := auth.NewFromConfig(&cfg.Security)
	if err != nil {
		return err
	}
	if cfg.Security.AuthMode == config.AuthModeNone {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every caller is treated as admin")
	}
	enforcer, err := authz.NewEnforcer(cfg.Security.CasbinPolicyPath)
	if err != nil {
		return err
	}

	auditLog := audit.NewLogger(audit.NewMemoryStore(cfg.Security.AuditRetention), audit.DefaultConfig())
	defer func() { _ = auditLog.Close() }()

	svc := api.NewService(api.ServiceConfig{
		Registry: reg,
		Engine:   engine,
		Cache:    cache,
		Store:    st,
		Authz:    enforcer,
		Geo:      geo,
		Audit:    auditLog,
	})
	hub := ws.NewHub(cfg.Live.MaxWSClients)
	handler := api.NewHandler(svc, api.NewWebSocketHandler(svc, hub, cfg.Security.CORSOrigins))
	router := api.NewRouter(api.RouterConfig{
		Handler:       handler,
		Authenticator: authenticator,
		Middleware:    api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if st.badger != nil {
		tree.AddDataService(services.NewStoreGCService(st.badger, 10*time.Minute))
	}
	var natsServer services.Shutdowner
	if events.server != nil {
		natsServer = events.server
	}
	tree.AddDataService(services.NewEventBusService(events.bus, natsServer, cfg.Server.ShutdownTimeout))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewSyncEngineService(engine, cfg.Server.ShutdownTimeout))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Fleetlink stopped")
	return nil
}
