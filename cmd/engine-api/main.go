package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/entitlements/internal/api"
	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/config"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/db"
	"github.com/edvin/entitlements/internal/logging"
	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/store/memory"
	"github.com/edvin/entitlements/internal/store/postgres"
	"github.com/edvin/entitlements/internal/workflow"
)

// lapseSweepInterval paces the in-process lapse sweep used when no Temporal
// worker runs the scheduled one.
const lapseSweepInterval = 10 * time.Minute

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("engine-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "engine-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	cat, err := catalog.Load(cfg.TierCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tier catalog")
	}

	var store core.Store
	switch cfg.Store {
	case "memory":
		logger.Warn().Msg("using in-memory store, state is lost on restart")
		store = memory.New()
	default:
		if *migrateFlag {
			logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
			if err := db.RunMigrations(ctx, cfg.DatabaseURL, *migrateDirFlag); err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)
		store = postgres.New(pool)
	}

	var tc temporalclient.Client
	if cfg.TemporalEnabled() {
		dialOpts, err := cfg.TemporalClientOptions()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure temporal client")
		}
		tc, err = temporalclient.Dial(dialOpts)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to temporal")
		}
		defer tc.Close()
	} else {
		logger.Info().Msg("temporal disabled, payment confirmations apply synchronously")
	}

	services := core.NewServices(store, cat, tc, engineOptions(cfg))
	srv := api.NewServer(logger, services, store, tc)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting engine API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if tc == nil {
		g.Go(func() error {
			runLapseSweep(gctx, services.Lifecycle, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func engineOptions(cfg *config.Config) core.Options {
	return core.Options{
		TrialDays:           cfg.TrialDays,
		TrialQuota:          cfg.TrialQuota,
		Rounding:            cfg.RoundingMode,
		Currency:            cfg.DefaultCurrency,
		TaskQueue:           cfg.TemporalTaskQueue,
		ConfirmationTimeout: cfg.PaymentConfirmationTimeout,
	}
}

func runLapseSweep(ctx context.Context, lifecycle *core.LifecycleService, logger zerolog.Logger) {
	ticker := time.NewTicker(lapseSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := lifecycle.ExpireLapsed(ctx, workflow.DefaultLapseBatch)
				if err != nil {
					logger.Error().Err(err).Msg("lapse sweep failed")
					break
				}
				if n < workflow.DefaultLapseBatch {
					break
				}
			}
		}
	}
}
