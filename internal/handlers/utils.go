package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/sirupsen/logrus"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// identityFromRequest authenticates the session cookie of r.
func identityFromRequest(r *http.Request, authn *auth.Authenticator) (auth.Identity, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), auth.CookieName)
	if token == "" {
		return auth.Identity{}, fmt.Errorf("%w: missing %s cookie", auth.ErrUnauthenticated, auth.CookieName)
	}
	return authn.AuthenticateJWT(token)
}

// RateLimitKey keys rate limiting by user when the request carries a valid
// session, and falls back to the remote address otherwise.
func RateLimitKey(authn *auth.Authenticator) func(*http.Request) string {
	return func(r *http.Request) string {
		id, err := identityFromRequest(r, authn)
		if err != nil {
			return ""
		}
		return "user:" + id.UserID.String()
	}
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("failed to encode response")
	}
}
