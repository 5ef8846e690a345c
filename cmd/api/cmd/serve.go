package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PratikDhanave/machine-events-service/internal/analytics"
	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/httpserver"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and accept event batches.

Examples:
  # In-memory store on the default address
  api serve

  # Postgres on a custom port
  STORE_DRIVER=postgres DB_URL=postgres://... api serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: :8080)")
	return cmd
}

// app is the wired service shared by serve, ingest and bench.
type app struct {
	store       store.Backend
	coordinator *ingest.Coordinator
	logger      zerolog.Logger
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := config.NewLogger(cfg.Logging)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	coord := ingest.NewCoordinator(st,
		ingest.WithLimits(ingest.Limits{
			MaxDurationMs: cfg.Ingest.MaxDurationMs,
			FutureHorizon: cfg.Ingest.FutureHorizon,
		}),
		ingest.WithLogger(logger.With().Str("component", "ingest").Logger()),
	)
	return &app{store: st, coordinator: coord, logger: logger}, nil
}

func runServer(cfg config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := newApp(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer a.store.Close()

	a.logger.Info().Str("store", cfg.Store.Driver).Str("version", Version).Msg("starting machine events service")

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpserver.NewRouter(cfg, httpserver.Deps{
			Store:    a.store,
			Ingest:   a.coordinator,
			Stats:    analytics.NewService(a.store),
			Machines: a.store,
			Logger:   a.logger,
		}),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return gracefulShutdown(server, a.logger, errCh)
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// In-flight batches finish their bulk write before the store closes.
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
