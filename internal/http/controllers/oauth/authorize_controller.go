package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
)

// AuthorizeController handles GET /oauth/authorize. The user arrives already
// authenticated (bearer credential); interactive login is not this server's
// job.
type AuthorizeController struct {
	svc svc.Services
}

func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	q := r.URL.Query()
	req := svc.AuthorizeRequest{
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		RequestURI:          q.Get("request_uri"),
	}

	if bearer := bearerToken(r); bearer != "" {
		userID, err := c.svc.UserAuth.Authenticate(ctx, bearer)
		if err == nil {
			req.UserID = userID
		}
	}

	res, err := c.svc.Authorize.Authorize(ctx, req)
	if err != nil {
		c.fail(w, r, req, err)
		return
	}

	redirect, perr := url.Parse(res.RedirectURI)
	if perr != nil {
		writeOAuthError(w, r, svc.ErrServerError)
		return
	}
	vals := redirect.Query()
	vals.Set("code", res.Code)
	if res.State != "" {
		vals.Set("state", res.State)
	}
	redirect.RawQuery = vals.Encode()

	log.Info("authorization code issued", logger.ClientID(req.ClientID))
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// fail reports errors via redirect when the redirect target itself is
// trustworthy; client or redirect problems render directly so codes never
// leak to an unregistered URI.
func (c *AuthorizeController) fail(w http.ResponseWriter, r *http.Request, req svc.AuthorizeRequest, err error) {
	redirectable := !errors.Is(err, svc.ErrInvalidClient) &&
		!errors.Is(err, svc.ErrServerError) &&
		c.registeredRedirect(r, req)
	if !redirectable {
		writeOAuthError(w, r, err)
		return
	}

	_, code := oauthStatus(err)
	redirect, perr := url.Parse(req.RedirectURI)
	if perr != nil {
		writeOAuthError(w, r, err)
		return
	}
	vals := redirect.Query()
	vals.Set("error", code)
	if req.State != "" {
		vals.Set("state", req.State)
	}
	redirect.RawQuery = vals.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (c *AuthorizeController) registeredRedirect(r *http.Request, req svc.AuthorizeRequest) bool {
	client, err := c.svc.Clients.Get(r.Context(), req.ClientID)
	if err != nil {
		return false
	}
	return c.svc.Clients.ValidateRedirectURI(client, req.RedirectURI) == nil
}
