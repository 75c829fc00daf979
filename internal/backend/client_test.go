package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoForwardsCredentialsVerbatim(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	auth := AuthContext{
		AccessToken:  "abc",
		CookieHeader: "access_token=abc; device_id=d-1; refresh_token=r-1",
	}

	resp, err := c.Do(context.Background(), http.MethodGet, "/doctors", url.Values{"limit": {"10"}}, nil, auth)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	require.Equal(t, "access_token=abc; device_id=d-1; refresh_token=r-1", got.Header.Get("Cookie"))
	require.Equal(t, "no-store", got.Header.Get("Cache-Control"))
	require.Equal(t, "10", got.URL.Query().Get("limit"))
}

func TestDoParsesStructuredErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"slot already held"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Do(context.Background(), http.MethodPost, "/patient/slots/x/hold", nil, nil, AuthContext{})

	be, ok := AsBackendError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, be.StatusCode)
	require.Equal(t, "slot already held", be.Detail)
}

func TestDoErrorFieldFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad filter"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Get(context.Background(), "/doctors", nil, AuthContext{})

	be, ok := AsBackendError(err)
	require.True(t, ok)
	require.Equal(t, "bad filter", be.Detail)
}

func TestDoUnparseableErrorFallsBackToStatusPhrase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html>down</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Get(context.Background(), "/doctors", nil, AuthContext{})

	be, ok := AsBackendError(err)
	require.True(t, ok)
	require.Contains(t, be.Detail, "Service Unavailable")
}

func TestDo401IsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Get(context.Background(), "/profile/patient", nil, AuthContext{AccessToken: "stale"})

	require.ErrorIs(t, err, ErrUnauthenticated)
	_, ok := AsBackendError(err)
	require.False(t, ok, "a 401 is a credential problem, not a business rejection")
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, time.Second, nil)
	_, err := c.Get(context.Background(), "/doctors", nil, AuthContext{})

	require.True(t, IsTransport(err))
	_, ok := AsBackendError(err)
	require.False(t, ok)
}

func TestResponseDecodeMalformedIsTransport(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"broken"`)}
	var out map[string]any
	err := resp.Decode(&out)
	require.True(t, IsTransport(err), "malformed success bodies downgrade to transient")
}
