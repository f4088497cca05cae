package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	cachememory "github.com/dropDatabas3/authgrid/internal/cache/memory"
	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/security/dpop"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	storememory "github.com/dropDatabas3/authgrid/internal/store/memory"
)

const (
	testBase     = "https://auth.example.com"
	testRedirect = "https://app.example.com/callback"
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk_extra"
	testSecret   = "s3cret-value"
)

func init() {
	logger.Init(logger.Config{Env: "test", Level: "error", ServiceName: "authgrid"})
}

type webHarness struct {
	handler  http.Handler
	services svc.Services
	store    *storememory.Store
	iss      *jwtx.Issuer
}

func newWebHarness(t *testing.T) *webHarness {
	t.Helper()
	ctx := context.Background()

	st := storememory.New()
	iss, err := jwtx.NewIssuer(testBase, "", time.Hour)
	require.NoError(t, err)

	require.NoError(t, st.Scopes().Upsert(ctx, repository.Scope{Name: "openid", IsDefault: true}))
	require.NoError(t, st.Scopes().Upsert(ctx, repository.Scope{Name: "read"}))

	_, err = st.Clients().Create(ctx, repository.ClientInput{
		ClientID:     "web-app",
		Name:         "Web App",
		RedirectURIs: []string{testRedirect},
	})
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.Clients().Create(ctx, repository.ClientInput{
		ClientID:   "backend",
		Name:       "Backend",
		SecretHash: string(hash),
	})
	require.NoError(t, err)

	c := cachememory.New(time.Minute)
	services := svc.NewServices(svc.Deps{
		Store:           st,
		Cache:           c,
		Issuer:          iss,
		AccessTTL:       time.Hour,
		RefreshTTL:      720 * time.Hour,
		AuthCodeTTL:     10 * time.Minute,
		DeviceCodeTTL:   10 * time.Minute,
		DeviceInterval:  5,
		PARRequestTTL:   90 * time.Second,
		VerificationURI: testBase + "/device",
	})

	ctrls := New(Deps{
		Services:    services,
		Issuer:      iss,
		DPoP:        dpop.NewValidator(c, time.Minute),
		ExternalURL: testBase,
	})

	r := chi.NewRouter()
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", ctrls.Authorize.Authorize)
		r.Post("/token", ctrls.Token.Token)
		r.Post("/introspect", ctrls.Introspect.Introspect)
		r.Post("/revoke", ctrls.Revoke.Revoke)
		r.Post("/device/code", ctrls.Device.Code)
		r.Post("/device/verify", ctrls.Device.Verify)
		r.Post("/par", ctrls.PAR.Push)
		r.Get("/jwks.json", ctrls.Discovery.JWKS)
	})
	r.Get("/.well-known/oauth-authorization-server", ctrls.Discovery.Metadata)

	return &webHarness{handler: r, services: services, store: st, iss: iss}
}

// userToken mints an access token usable as the end-user bearer credential.
func (h *webHarness) userToken(t *testing.T, userID string) string {
	t.Helper()
	code := h.authorizeCode(t, userID)

	resp := h.postForm(t, "/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"web-app"},
		"code":          {code},
		"redirect_uri":  {testRedirect},
		"code_verifier": {testVerifier},
	}, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.AccessToken
}

// authorizeCode runs the authorize service directly to seed a code.
func (h *webHarness) authorizeCode(t *testing.T, userID string) string {
	t.Helper()
	challenge, err := pkce.Challenge(testVerifier, pkce.MethodS256)
	require.NoError(t, err)
	res, err := h.services.Authorize.Authorize(context.Background(), svc.AuthorizeRequest{
		ClientID:            "web-app",
		RedirectURI:         testRedirect,
		ResponseType:        "code",
		Scope:               "openid",
		State:               "st",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
		UserID:              userID,
	})
	require.NoError(t, err)
	return res.Code
}

func (h *webHarness) postForm(t *testing.T, path string, form url.Values, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizeRedirectsWithCode(t *testing.T) {
	h := newWebHarness(t)
	challenge, err := pkce.Challenge(testVerifier, pkce.MethodS256)
	require.NoError(t, err)

	bearer := h.userToken(t, "user-1")

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"web-app"},
		"redirect_uri":          {testRedirect},
		"scope":                 {"openid"},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("code"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestAuthorizeMissingPKCERedirectsError(t *testing.T) {
	h := newWebHarness(t)
	bearer := h.userToken(t, "user-1")

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {"web-app"},
		"redirect_uri":  {testRedirect},
		"state":         {"xyz"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "invalid_request", loc.Query().Get("error"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestAuthorizeUnknownClientNoRedirect(t *testing.T) {
	h := newWebHarness(t)
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {"ghost"},
		"redirect_uri":  {"https://evil.example.com/cb"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestTokenEndpointReplayError(t *testing.T) {
	h := newWebHarness(t)
	code := h.authorizeCode(t, "user-1")

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"web-app"},
		"code":          {code},
		"redirect_uri":  {testRedirect},
		"code_verifier": {testVerifier},
	}
	first := h.postForm(t, "/oauth/token", form, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "no-store", first.Header().Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	assert.EqualValues(t, 3600, body["expires_in"])
	assert.Equal(t, "Bearer", body["token_type"])

	second := h.postForm(t, "/oauth/token", form, nil)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.JSONEq(t, `{"error":"invalid_grant"}`, second.Body.String())
}

func TestTokenClientSecretBasic(t *testing.T) {
	h := newWebHarness(t)
	resp := h.postForm(t, "/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	}, func(r *http.Request) {
		r.SetBasicAuth("backend", testSecret)
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestTokenInvalidClient401(t *testing.T) {
	h := newWebHarness(t)
	resp := h.postForm(t, "/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"backend"},
		"client_secret": {"wrong"},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("WWW-Authenticate"))
}

func TestIntrospectRequiresClientAuth(t *testing.T) {
	h := newWebHarness(t)
	resp := h.postForm(t, "/oauth/introspect", url.Values{"token": {"x"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestIntrospectActive(t *testing.T) {
	h := newWebHarness(t)
	token := h.userToken(t, "user-1")

	resp := h.postForm(t, "/oauth/introspect", url.Values{"token": {token}}, func(r *http.Request) {
		r.SetBasicAuth("backend", testSecret)
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "user-1", body["sub"])
}

func TestRevokeAlways200(t *testing.T) {
	h := newWebHarness(t)
	resp := h.postForm(t, "/oauth/revoke", url.Values{"token": {"unknown"}}, func(r *http.Request) {
		r.SetBasicAuth("backend", testSecret)
	})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestDeviceCodeAndVerify(t *testing.T) {
	h := newWebHarness(t)

	resp := h.postForm(t, "/oauth/device/code", url.Values{
		"client_id": {"web-app"},
		"scope":     {"openid"},
	}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var dc struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		Interval        int    `json:"interval"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &dc))
	assert.Equal(t, testBase+"/device", dc.VerificationURI)
	assert.Equal(t, 5, dc.Interval)

	bearer := h.userToken(t, "user-9")
	body := strings.NewReader(`{"user_code":"` + dc.UserCode + `","action":"approve"}`)
	req := httptest.NewRequest(http.MethodPost, "/oauth/device/verify", body)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the device can now redeem (fresh code, never polled)
	poll := h.postForm(t, "/oauth/token", url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"client_id":   {"web-app"},
		"device_code": {dc.DeviceCode},
	}, nil)
	require.Equal(t, http.StatusOK, poll.Code, poll.Body.String())
}

func TestDeviceVerifyRequiresUser(t *testing.T) {
	h := newWebHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/oauth/device/verify",
		strings.NewReader(`{"user_code":"XXXX-XXXX","action":"approve"}`))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPAREndpoint(t *testing.T) {
	h := newWebHarness(t)
	challenge, err := pkce.Challenge(testVerifier, pkce.MethodS256)
	require.NoError(t, err)

	resp := h.postForm(t, "/oauth/par", url.Values{
		"client_id":             {"web-app"},
		"response_type":         {"code"},
		"redirect_uri":          {testRedirect},
		"scope":                 {"openid"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body struct {
		RequestURI string `json:"request_uri"`
		ExpiresIn  int64  `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.RequestURI, "urn:ietf:params:oauth:request_uri:"))
	assert.EqualValues(t, 90, body.ExpiresIn)
}

func TestJWKSAndMetadata(t *testing.T) {
	h := newWebHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/jwks.json", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kty":"OKP"`)

	req = httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, testBase, doc["issuer"])
	assert.Equal(t, testBase+"/oauth/token", doc["token_endpoint"])
}
