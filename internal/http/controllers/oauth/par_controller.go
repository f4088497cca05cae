package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/authgrid/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
)

// PARController handles POST /oauth/par (RFC 9126).
type PARController struct {
	svc svc.Services
}

func (c *PARController) Push(w http.ResponseWriter, r *http.Request) {
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

	// the stored set is the form body minus the credentials
	params := r.PostForm
	params.Del("client_secret")
	params.Set("client_id", client.ClientID)

	uri, expiresIn, err := c.svc.PAR.Push(ctx, client, params)
	if err != nil {
		writeOAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PARResponse{RequestURI: uri, ExpiresIn: expiresIn})
}
