package oauth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
)

// IntrospectController handles POST /oauth/introspect (RFC 7662). The caller
// must authenticate as a client; beyond that the response never distinguishes
// why a token is inactive.
type IntrospectController struct {
	svc svc.Services
}

func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	if _, err := c.svc.Clients.Authenticate(ctx, clientID, clientSecret); err != nil {
		writeOAuthError(w, r, err)
		return
	}

	resp := c.svc.Introspect.Introspect(ctx,
		strings.TrimSpace(r.PostForm.Get("token")),
		strings.TrimSpace(r.PostForm.Get("token_type_hint")),
	)
	writeJSON(w, http.StatusOK, resp)
}
