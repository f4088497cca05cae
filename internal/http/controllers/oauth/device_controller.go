package oauth

import (
	"encoding/json"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/authgrid/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
)

// DeviceController handles the device flow endpoints: code issuance for the
// device and approve/deny for the user.
type DeviceController struct {
	svc svc.Services
}

// Code handles POST /oauth/device/code (RFC 8628 §3.1).
func (c *DeviceController) Code(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}

	clientID, _ := clientCredentials(r)
	resp, err := c.svc.Device.RequestCode(ctx, clientID, strings.TrimSpace(r.PostForm.Get("scope")))
	if err != nil {
		writeOAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Verify handles POST /oauth/device/verify: the authenticated user approves
// or denies a typed user code.
func (c *DeviceController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.device.verify"))

	bearer := bearerToken(r)
	if bearer == "" {
		writeOAuthError(w, r, svc.ErrAccessDenied)
		return
	}
	userID, err := c.svc.UserAuth.Authenticate(ctx, bearer)
	if err != nil {
		writeOAuthError(w, r, svc.ErrAccessDenied)
		return
	}

	var req dto.DeviceVerifyRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserCode == "" {
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}

	switch req.Action {
	case "approve":
		err = c.svc.Device.Approve(ctx, req.UserCode, userID)
	case "deny":
		err = c.svc.Device.Deny(ctx, req.UserCode)
	default:
		writeOAuthError(w, r, svc.ErrInvalidRequest)
		return
	}
	if err != nil {
		writeOAuthError(w, r, err)
		return
	}

	log.Info("device code decided", logger.UserID(userID), logger.String("action", req.Action))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
