// Package oauth contains the controllers behind the /oauth routes. They
// parse the wire, delegate to the services, and map the closed error set to
// RFC 6749 responses.
package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authgrid/internal/metrics"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
)

// oauthStatus maps a service error to its HTTP status and wire code.
func oauthStatus(err error) (int, string) {
	switch {
	case errors.Is(err, svc.ErrInvalidClient):
		return http.StatusUnauthorized, "invalid_client"
	case errors.Is(err, svc.ErrServerError):
		return http.StatusInternalServerError, "server_error"
	case errors.Is(err, svc.ErrInvalidRequest),
		errors.Is(err, svc.ErrInvalidGrant),
		errors.Is(err, svc.ErrUnauthorizedClient),
		errors.Is(err, svc.ErrAccessDenied),
		errors.Is(err, svc.ErrUnsupportedGrantType),
		errors.Is(err, svc.ErrUnsupportedResponse),
		errors.Is(err, svc.ErrInvalidScope),
		errors.Is(err, svc.ErrAuthorizationPending),
		errors.Is(err, svc.ErrSlowDown),
		errors.Is(err, svc.ErrExpiredToken),
		errors.Is(err, svc.ErrInvalidDPoPProof):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := oauthStatus(err)
	if status == http.StatusInternalServerError {
		logger.From(r.Context()).Error("oauth endpoint error", logger.Err(err))
	}
	metrics.OAuthErrors.WithLabelValues(code).Inc()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if code == "invalid_client" {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth", charset="UTF-8"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientCredentials pulls the client id and secret from HTTP Basic or the
// form body. Basic wins when both are present.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")),
		strings.TrimSpace(r.PostForm.Get("client_secret"))
}

// bearerToken extracts an Authorization: Bearer credential, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
