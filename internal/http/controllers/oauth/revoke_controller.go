package oauth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
)

// RevokeController handles POST /oauth/revoke (RFC 7009). Success is 200
// with an empty body, including for unknown tokens.
type RevokeController struct {
	svc svc.Services
}

func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	client, err := c.svc.Clients.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		writeOAuthError(w, r, err)
		return
	}

	if err := c.svc.Revoke.Revoke(ctx, client,
		strings.TrimSpace(r.PostForm.Get("token")),
		strings.TrimSpace(r.PostForm.Get("token_type_hint")),
	); err != nil {
		writeOAuthError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}
