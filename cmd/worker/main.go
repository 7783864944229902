package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/entitlements/internal/activity"
	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/config"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/db"
	"github.com/edvin/entitlements/internal/logging"
	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/store/postgres"
	"github.com/edvin/entitlements/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)

	cat, err := catalog.Load(cfg.TierCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tier catalog")
	}

	dialOpts, err := cfg.TemporalClientOptions()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal client")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	services := core.NewServices(postgres.New(pool), cat, tc, core.Options{
		TrialDays:           cfg.TrialDays,
		TrialQuota:          cfg.TrialQuota,
		Rounding:            cfg.RoundingMode,
		Currency:            cfg.DefaultCurrency,
		TaskQueue:           cfg.TemporalTaskQueue,
		ConfirmationTimeout: cfg.PaymentConfirmationTimeout,
	})

	w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ActivityResultInterceptor{}},
	})

	// Register activities
	w.RegisterActivity(activity.NewPlanChange(services.Lifecycle, logger))
	w.RegisterActivity(activity.NewLifecycle(services.Lifecycle, logger))

	// Register workflows
	w.RegisterWorkflow(workflow.PlanChangeWorkflow)
	w.RegisterWorkflow(workflow.ExpireLapsedSubscriptionsWorkflow)

	if cfg.MetricsListenAddr != "" {
		temporalReady := func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
			return err
		}
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr, pool.Ping, temporalReady)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", cfg.TemporalTaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Errors for already-existing schedules are ignored so re-deploys do not fail.
	registerCronSchedules(ctx, tc, cfg.TemporalTaskQueue, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow any
	args     []any
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, taskQueue string, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "expire-lapsed-subscriptions",
			cron:     "*/15 * * * *",
			workflow: workflow.ExpireLapsedSubscriptionsWorkflow,
			args:     []any{workflow.DefaultLapseBatch},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if alreadyExists(err) {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}

func alreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "AlreadyExists") || strings.Contains(msg, "already registered")
}
