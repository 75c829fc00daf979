package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddlewareScopesLogEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var captured string
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
		logEntry(r.Context()).Info("inside handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "req-42", captured)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	require.Len(t, hook.Entries, 1)
	require.Equal(t, "req-42", hook.Entries[0].Data["request_id"],
		"downstream log lines carry the request id without repeating the field")
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handler := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
