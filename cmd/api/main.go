package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/obinnaeze/pharmapos-backend/api/routes"
	"github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	"github.com/obinnaeze/pharmapos-backend/internal/allocation"
	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/internal/reconciliation"
	"github.com/obinnaeze/pharmapos-backend/internal/reservations"
	"github.com/obinnaeze/pharmapos-backend/internal/transfers"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
	"github.com/obinnaeze/pharmapos-backend/pkg/migrate"
	"github.com/obinnaeze/pharmapos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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
	allocSvc, err := allocation.NewService(dbClient, batchRepo, batchSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create allocation service", err)
		os.Exit(1)
	}
	resSvc, err := reservations.NewService(dbClient, reservations.NewRepository(conn), batchRepo, batchSvc, auditRepo, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}
	adjSvc, err := adjustments.NewService(dbClient, adjustments.NewRepository(conn), batchRepo, batchSvc, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create adjustment service", err)
		os.Exit(1)
	}
	trfSvc, err := transfers.NewService(dbClient, transfers.NewRepository(conn), batchRepo, batchSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer service", err)
		os.Exit(1)
	}
	recSvc, err := reconciliation.NewService(dbClient, reconciliation.NewRepository(conn), batchRepo, adjSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}
	auditSvc, err := audit.NewService(auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Batches:        batchSvc,
			Allocation:     allocSvc,
			Reservations:   resSvc,
			Adjustments:    adjSvc,
			Transfers:      trfSvc,
			Reconciliation: recSvc,
			Audit:          auditSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
