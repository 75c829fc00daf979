package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/api"
	"github.com/carebridge/booking-gateway/internal/appointment"
	"github.com/carebridge/booking-gateway/internal/audit"
	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/config"
	"github.com/carebridge/booking-gateway/internal/db"
	"github.com/carebridge/booking-gateway/internal/metrics"
	redisclient "github.com/carebridge/booking-gateway/internal/redis"
	"github.com/carebridge/booking-gateway/internal/session"
	"github.com/carebridge/booking-gateway/internal/slot"
)

const version = "0.3.0"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.Info("gateway starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("config load error")
	}

	logger.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"http_port": cfg.HTTPPort,
		"backend":   cfg.BackendBaseURL,
	}).Info("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.WithError(err).Warn("error closing redis")
		}
	}()
	logger.Info("connected to Redis")

	var pgPool *pgxpool.Pool
	var auditStore audit.Store
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.WithError(err).Fatal("postgres connection error")
		}
		defer pgPool.Close()
		auditStore = audit.NewPgStore(pgPool)
		logger.Info("connected to Postgres, audit log enabled")
	} else {
		logger.Warn("POSTGRES_DSN not set, audit log disabled")
	}

	m := metrics.NewGatewayMetrics(prometheus.DefaultRegisterer)

	recorder := audit.NewRecorder(auditStore, logger)

	gateway := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)
	resolver := session.NewResolver(gateway, recorder, logger, m)
	guard := api.NewEdgeGuard(resolver, logger, cfg.AccessTokenTTL, cfg.IsProd(), []string{"/api/"})

	slots := slot.NewService(gateway, slot.NewMachine(cfg.HoldDuration), recorder, logger, m)
	markers := appointment.NewMarkerStore(rdb, logger)
	limiter := api.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)

	router := api.NewRouter(api.RouterConfig{
		Gateway: gateway,
		Slots:   slots,
		Markers: markers,
		Guard:   guard,
		Limiter: limiter,
		Logger:  logger,
		Metrics: m,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
