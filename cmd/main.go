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

	"github.com/go-chi/chi/v5"
	"github.com/okian/sentiment/internal/adapters/http/api"
	"github.com/okian/sentiment/internal/adapters/http/swagger"
	"github.com/okian/sentiment/internal/adapters/predictor"
	"github.com/okian/sentiment/internal/adapters/repository"
	service "github.com/okian/sentiment/internal/app"
	"github.com/okian/sentiment/internal/config"
	"github.com/okian/sentiment/internal/domain/admission"
	"github.com/okian/sentiment/internal/loadgen"
	"github.com/okian/sentiment/pkg/logger"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sentiment",
		Short:         "Sentiment analysis gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP gateway", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Create or update the database schema", RunE: runMigrate},
		newLoadgenCmd(),
	)
	return root
}

// setup loads .env and configuration and initializes the global logger.
func setup(ctx context.Context) (*config.Config, logger.Logger, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, logger.Get(), nil
}

func openStore(ctx context.Context, cfg *config.Config, l logger.Logger) (*repository.GormStore, error) {
	return repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithLogger(l.Named("store")),
		repository.WithMaxOpenConns(cfg.DBMaxOpenConns),
		repository.WithMaxIdleConns(cfg.DBMaxIdleConns),
		repository.WithSlowQueryThreshold(cfg.DBSlowQueryThreshold()))
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info(ctx, "schema migrated", logger.String("driver", cfg.DBDriver))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return err
	}

	svc, router := wire(ctx, cfg, log, store)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// wire builds the gate, predictor client, service, aggregator and router
// over an open store.
func wire(ctx context.Context, cfg *config.Config, log logger.Logger, store repository.Store) (*service.Service, chi.Router) {
	gate := admission.New(cfg.AdmissionCapacity)
	client := predictor.New(cfg.PredictorBaseURL,
		predictor.WithConnectTimeout(cfg.PredictorConnectTimeout()),
		predictor.WithRequestTimeout(cfg.PredictorRequestTimeout()),
		predictor.WithMaxConnections(cfg.PredictorMaxConnections),
		predictor.WithLogger(log.Named("predictor")))

	svc := service.New(client, gate, store,
		service.WithLogger(log.Named("service")),
		service.WithMaxPageSize(cfg.HistoryMaxPageSize))
	agg := service.NewAggregator(store,
		service.WithHighConfidence(cfg.AnalyticsHighConfidence),
		service.WithTextLengthBounds(cfg.AnalyticsShortTextMax, cfg.AnalyticsLongTextMin),
		service.WithEmptyOnError(cfg.AnalyticsEmptyOnError),
		service.WithAggregatorLogger(log.Named("analytics")))

	router := api.NewServer(svc, agg,
		api.WithLogger(log.Named("http")),
		api.WithAllowedOrigins(cfg.AllowedOrigins()),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Router(ctx)
	swagger.Register(ctx, router)
	return svc, router
}

func newLoadgenCmd() *cobra.Command {
	var lc loadgen.Config
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Submit generated analyses to a running gateway and verify they were stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := logger.Init(); err != nil {
				return err
			}
			r, err := loadgen.NewRunner(lc, logger.Named("loadgen"))
			if err != nil {
				return err
			}
			_, err = r.Run(ctx)
			return err
		},
	}
	cmd.Flags().StringVar(&lc.BaseURL, "url", "http://localhost:8080", "gateway base URL")
	cmd.Flags().IntVarP(&lc.Requests, "requests", "n", 1000, "number of analyses to submit")
	cmd.Flags().IntVarP(&lc.Workers, "workers", "w", 16, "concurrent workers")
	cmd.Flags().DurationVar(&lc.Timeout, "timeout", 30*time.Second, "per-request timeout")
	cmd.Flags().Int64Var(&lc.Seed, "seed", 0, "generator seed, 0 picks one from the clock")
	return cmd
}
