package session

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	// AccessTokenCookie is the short-lived bearer credential.
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie is the longer-lived credential used only against
	// the refresh endpoint.
	RefreshTokenCookie = "refresh_token"
)

// Credentials is the session state extracted from one inbound request.
// Both tokens are owned by the browser; the gateway never verifies them
// locally, validity is always the backend's call.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	// CookieHeader is the raw inbound Cookie header, forwarded verbatim on
	// proxied calls so device/session cookies reach the backend unmodified.
	CookieHeader string
}

// FromRequest reads session credentials out of the request cookies.
func FromRequest(r *http.Request) Credentials {
	creds := Credentials{CookieHeader: r.Header.Get("Cookie")}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		creds.AccessToken = c.Value
	}
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		creds.RefreshToken = c.Value
	}
	return creds
}

// SessionKey derives a stable, non-reversible identifier for the session,
// keyed off the refresh token (which outlives access token rotations) with
// the access token as a fallback. Empty when the request carries no
// credentials at all.
func (c Credentials) SessionKey() string {
	seed := c.RefreshToken
	if seed == "" {
		seed = c.AccessToken
	}
	if seed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}

// NewAccessTokenCookie bakes a freshly minted access token into an HTTP-only
// cookie scoped to the whole site: 15-minute max-age, SameSite=Lax, Secure
// when running in prod.
func NewAccessTokenCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
