package session

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/audit"
	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/metrics"
)

const refreshPath = "/auth/refresh"

// Outcome is the tri-state result of a resolution. Callers decide between
// "redirect to login" (Unauthenticated) and "retry later" (TransientFailure);
// the resolver itself never retries.
type Outcome int

const (
	TokenValid Outcome = iota
	Unauthenticated
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case TokenValid:
		return "token_valid"
	case Unauthenticated:
		return "unauthenticated"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

type refreshCaller interface {
	Do(ctx context.Context, method, path string, query url.Values, body any, auth backend.AuthContext) (*backend.Response, error)
}

// Resolver produces a valid access token from stored session credentials,
// transparently refreshing when the access token is absent. It is the single
// implementation of the "try access token, else refresh, else reject" flow
// shared by every entry point.
type Resolver struct {
	client  refreshCaller
	audit   *audit.Recorder
	logger  *logrus.Logger
	metrics *metrics.GatewayMetrics
}

func NewResolver(client refreshCaller, rec *audit.Recorder, logger *logrus.Logger, m *metrics.GatewayMetrics) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{client: client, audit: rec, logger: logger, metrics: m}
}

// Resolve returns a usable access token or reports why none exists.
//
// A present access token is returned as-is with zero network calls; expiry is
// discovered only by a downstream 401, never checked locally. Otherwise
// exactly one refresh call is issued carrying the refresh token as a cookie.
// Non-2xx and malformed bodies mean Unauthenticated; transport failures mean
// TransientFailure. No retry happens within one resolution.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (string, Outcome, error) {
	if creds.AccessToken != "" {
		return creds.AccessToken, TokenValid, nil
	}

	if creds.RefreshToken == "" {
		return "", Unauthenticated, nil
	}

	auth := backend.AuthContext{
		CookieHeader: RefreshTokenCookie + "=" + creds.RefreshToken,
	}

	resp, err := r.client.Do(ctx, http.MethodPost, refreshPath, nil, nil, auth)
	if err != nil {
		if backend.IsTransport(err) {
			r.metrics.ObserveRefresh("transient")
			r.logger.WithError(err).Warn("token refresh failed at transport level")
			return "", TransientFailure, err
		}
		// Backend rejected the refresh token: expired, revoked, unknown.
		r.metrics.ObserveRefresh("rejected")
		r.audit.Record(ctx, audit.EventRefreshRejected, uuid.Nil, map[string]any{"reason": "rejected"})
		r.logger.WithError(err).Debug("token refresh rejected by backend")
		return "", Unauthenticated, nil
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.Decode(&body); err != nil || body.AccessToken == "" {
		r.metrics.ObserveRefresh("malformed")
		r.audit.Record(ctx, audit.EventRefreshRejected, uuid.Nil, map[string]any{"reason": "malformed"})
		r.logger.Warn("token refresh returned malformed body")
		return "", Unauthenticated, nil
	}

	r.metrics.ObserveRefresh("success")
	return body.AccessToken, TokenValid, nil
}
