package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/appointment"
	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/metrics"
	"github.com/carebridge/booking-gateway/internal/slot"
)

// protectedPrefixes are the path prefixes the edge guard fences off.
var protectedPrefixes = []string{"/api/"}

type RouterConfig struct {
	Gateway *backend.Client
	Slots   *slot.Service
	Markers *appointment.MarkerStore
	Guard   *EdgeGuard
	Limiter *RateLimiter
	Logger  *logrus.Logger
	Metrics *metrics.GatewayMetrics
	PgPool  *pgxpool.Pool // nil when audit is disabled
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Metrics))

	// Health and metrics sit outside the edge guard.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	h := NewHandlers(cfg.Gateway, cfg.Slots, cfg.Markers, cfg.Logger, cfg.Metrics)

	// Application routes: the guard runs on all of them, public ones
	// included, so a refresh can ride out on any response.
	r.Group(func(r chi.Router) {
		r.Use(cfg.Guard.Middleware)

		r.Get(LoginPath, h.Login)

		// Password reset is public but rate limited.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Limiter.Middleware)
			r.Post("/password-reset/request", h.PasswordResetRequest)
			r.Post("/password-reset/validate", h.PasswordResetValidate)
			r.Post("/password-reset/confirm", h.PasswordResetConfirm)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/doctors", h.ListDoctors)

			r.Get("/appointments/doctor", h.DoctorAppointments)
			r.Get("/appointments/patient", h.PatientAppointments)
			r.Post("/appointments/{role}/seen", h.MarkSeen)

			r.Get("/slots", h.ListSlots)
			r.Post("/slots/{id}/hold", h.HoldSlot)
			r.Post("/slots/{id}/release", h.ReleaseSlot)
			r.Post("/slots/{id}/confirm", h.ConfirmSlot)
			r.Post("/slots/{id}/block", h.BlockSlot)
			r.Post("/slots/{id}/unblock", h.UnblockSlot)

			r.Get("/profile/doctor", h.GetDoctorProfile)
			r.Patch("/profile/doctor", h.PatchDoctorProfile)
			r.Get("/profile/patient", h.GetPatientProfile)
			r.Patch("/profile/patient", h.PatchPatientProfile)
		})
	})

	return r
}
