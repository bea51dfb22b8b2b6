package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/internal/cron"
	"github.com/obinnaeze/pharmapos-backend/internal/reservations"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
	"github.com/obinnaeze/pharmapos-backend/pkg/metrics"
	"github.com/obinnaeze/pharmapos-backend/pkg/migrate"
	"github.com/obinnaeze/pharmapos-backend/pkg/redis"
)

const lockKeyFormat = "ppos:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	systemActor, err := uuid.Parse(cfg.Ledger.SystemActorID)
	if err != nil || systemActor == uuid.Nil {
		logg.Error(context.Background(), "a valid PHARMAPOS_LEDGER_SYSTEM_ACTOR_ID is required to attribute scheduled writes", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	batchRepo := batches.NewRepository(conn)
	auditRepo := audit.NewRepository(conn)

	batchSvc, err := batches.NewService(dbClient, batchRepo, auditRepo, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create batch service", err)
		os.Exit(1)
	}
	resSvc, err := reservations.NewService(dbClient, reservations.NewRepository(conn), batchRepo, batchSvc, auditRepo, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewReservationSweepJob(cron.ReservationSweepJobParams{
		Logger:       logg,
		Reservations: resSvc,
		SystemActor:  systemActor,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation sweep job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewBatchExpiryJob(cron.BatchExpiryJobParams{
		Logger:      logg,
		Batches:     batchRepo,
		Ledger:      batchSvc,
		SystemActor: systemActor,
		HorizonDays: cfg.Ledger.ExpiryHorizonDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create batch expiry job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, expiryJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
