package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/metrics"
	"github.com/carebridge/booking-gateway/internal/session"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	loggerKey      contextKey = "logger"
	credentialsKey contextKey = "credentials"
	accessTokenKey contextKey = "access_token"
)

// RequestIDMiddleware assigns each request an ID and derives a request-scoped
// log entry carrying it, so everything logged downstream lines up by
// request_id without each call site repeating the field.
func RequestIDMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = context.WithValue(ctx, loggerKey, logger.WithField("request_id", requestID))
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs every request with method, path, status and duration
// on the request-scoped entry, and feeds the latency histogram.
func LoggingMiddleware(m *metrics.GatewayMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			m.ObserveRequestLatency(r.Method, duration.Seconds())

			logEntry(r.Context()).WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.statusCode,
				"duration": duration.String(),
			}).Info("request handled")
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// logEntry returns the request-scoped log entry, falling back to the global
// logger outside a request.
func logEntry(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// credentialsFrom returns the session credentials the edge guard stored.
func credentialsFrom(ctx context.Context) session.Credentials {
	if c, ok := ctx.Value(credentialsKey).(session.Credentials); ok {
		return c
	}
	return session.Credentials{}
}

// authFrom builds the outbound auth context from what the guard resolved:
// the bearer token plus the inbound cookie header, forwarded verbatim.
func authFrom(ctx context.Context) backend.AuthContext {
	creds := credentialsFrom(ctx)
	auth := backend.AuthContext{CookieHeader: creds.CookieHeader}
	if tok, ok := ctx.Value(accessTokenKey).(string); ok {
		auth.AccessToken = tok
	}
	return auth
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
