package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/audit"
	"github.com/carebridge/booking-gateway/internal/config"
	"github.com/carebridge/booking-gateway/internal/db"
)

// audit-pruner trims gateway_events rows past the retention window on a
// fixed interval. Slot-hold expiry itself is read-time and backend-owned, so
// this is the only background job the gateway ships.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.Info("audit-pruner starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("config load error")
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required for the audit pruner")
	}

	logger.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"interval":  cfg.PruneInterval.String(),
		"retention": cfg.AuditRetention.String(),
	}).Info("running audit pruner")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.WithError(err).Fatal("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	store := audit.NewPgStore(pgPool)

	// Run once at startup
	runOnce(rootCtx, store, cfg.AuditRetention, logger)

	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping audit pruner")
			return
		case <-ticker.C:
			runOnce(rootCtx, store, cfg.AuditRetention, logger)
		}
	}
}

func runOnce(ctx context.Context, store audit.Store, retention time.Duration, logger *logrus.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	deleted, err := store.DeleteOlderThan(runCtx, time.Now().Add(-retention))
	if err != nil {
		logger.WithError(err).Error("prune run error")
		return
	}
	logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(start).String(),
	}).Info("prune run complete")
}
