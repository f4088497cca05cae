package oauth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/security/dpop"
)

// TokenController handles POST /oauth/token.
type TokenController struct {
	svc  svc.Services
	dpop *dpop.Validator
	base string
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("unparseable form", logger.Err(err))
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}

	clientID, clientSecret := clientCredentials(r)
	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	log = log.With(logger.GrantType(grantType), logger.ClientID(clientID))

	// an optional DPoP proof binds the issued pair to the proving key
	var jkt string
	if proof := r.Header.Get("DPoP"); proof != "" {
		res, err := c.dpop.Validate(ctx, proof, r.Method, c.base+r.URL.Path, "")
		if err != nil {
			log.Warn("dpop proof rejected", logger.Err(err))
			writeOAuthError(w, r, svc.ErrInvalidDPoPProof)
			return
		}
		jkt = res.Thumbprint
	}

	resp, err := c.svc.Token.Exchange(ctx, svc.TokenRequest{
		GrantType:        grantType,
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		Scope:            strings.TrimSpace(r.PostForm.Get("scope")),
		JKT:              jkt,
		Code:             strings.TrimSpace(r.PostForm.Get("code")),
		RedirectURI:      strings.TrimSpace(r.PostForm.Get("redirect_uri")),
		CodeVerifier:     strings.TrimSpace(r.PostForm.Get("code_verifier")),
		RefreshToken:     strings.TrimSpace(r.PostForm.Get("refresh_token")),
		DeviceCode:       strings.TrimSpace(r.PostForm.Get("device_code")),
		SubjectToken:     strings.TrimSpace(r.PostForm.Get("subject_token")),
		SubjectTokenType: strings.TrimSpace(r.PostForm.Get("subject_token_type")),
	})
	if err != nil {
		writeOAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
