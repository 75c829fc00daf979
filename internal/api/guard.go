package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/session"
)

// LoginPath is where unauthenticated access to protected areas lands.
const LoginPath = "/login"

type tokenResolver interface {
	Resolve(ctx context.Context, creds session.Credentials) (string, session.Outcome, error)
}

// EdgeGuard is the per-request gate in front of every route. It is
// single-pass: at most one silent refresh per request, never a loop.
//
//  1. Access token present → proceed unchanged.
//  2. No access token, refresh token present → one refresh; on success the
//     new token rides out as a Set-Cookie and the request proceeds.
//  3. No usable token on a protected path → redirect to /login.
//  4. No usable token on a public path → proceed unchanged.
type EdgeGuard struct {
	resolver    tokenResolver
	logger      *logrus.Logger
	tokenTTL    time.Duration
	secure      bool
	isProtected func(path string) bool
}

func NewEdgeGuard(resolver tokenResolver, logger *logrus.Logger, tokenTTL time.Duration, secure bool, protectedPrefixes []string) *EdgeGuard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EdgeGuard{
		resolver: resolver,
		logger:   logger,
		tokenTTL: tokenTTL,
		secure:   secure,
		isProtected: func(path string) bool {
			for _, p := range protectedPrefixes {
				if strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
	}
}

func (g *EdgeGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := session.FromRequest(r)
		ctx := context.WithValue(r.Context(), credentialsKey, creds)

		token, outcome, err := g.resolver.Resolve(ctx, creds)
		if outcome == session.TokenValid {
			if creds.AccessToken == "" {
				// The token came from a refresh: attach it to the
				// response so the browser stops needing one.
				http.SetCookie(w, session.NewAccessTokenCookie(token, g.tokenTTL, g.secure))
			}
			ctx = context.WithValue(ctx, accessTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !g.isProtected(r.URL.Path) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if outcome == session.TransientFailure {
			g.logger.WithError(err).WithField("path", r.URL.Path).
				Warn("refresh unavailable, sending caller to login")
		}
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}
