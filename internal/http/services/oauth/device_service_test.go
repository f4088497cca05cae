package oauth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
)

func TestDeviceFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dc, err := h.svc.Device.RequestCode(ctx, publicClient, "openid profile")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[BCDFGHJKLMNPQRSTVXWZ23456789]{4}-[BCDFGHJKLMNPQRSTVXWZ23456789]{4}$`), dc.UserCode)
	assert.Equal(t, "https://auth.example.com/device", dc.VerificationURI)
	assert.Equal(t, 5, dc.Interval)
	assert.EqualValues(t, 600, dc.ExpiresIn)

	poll := func() (*TokenResponse, error) {
		return h.svc.Token.Exchange(ctx, TokenRequest{
			GrantType:  string(GrantDeviceCode),
			ClientID:   publicClient,
			DeviceCode: dc.DeviceCode,
		})
	}

	_, err = poll()
	assert.ErrorIs(t, err, ErrAuthorizationPending)

	// polling again inside the interval triggers slow_down and grows it
	_, err = poll()
	assert.ErrorIs(t, err, ErrSlowDown)
	row, err := h.store.DeviceCodes().GetByUserCode(ctx, dc.UserCode)
	require.NoError(t, err)
	assert.Equal(t, 10, row.IntervalSeconds)

	require.NoError(t, h.svc.Device.Approve(ctx, dc.UserCode, "user-7"))

	// move the poll clock back so the interval has passed
	require.NoError(t, h.store.DeviceCodes().RecordPoll(ctx, row.ID, time.Now().Add(-time.Minute), row.IntervalSeconds))

	resp, err := poll()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := h.iss.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Subject)

	// the code is spent
	require.NoError(t, h.store.DeviceCodes().RecordPoll(ctx, row.ID, time.Now().Add(-time.Minute), row.IntervalSeconds))
	_, err = poll()
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

// A transient store failure while redeeming must leave the code redeemable:
// redemption commits together with the token insert.
func TestDevicePollSurvivesStoreFailure(t *testing.T) {
	h := newHarness(t)
	svc, flaky := h.flakyServices()
	ctx := context.Background()

	dc, err := h.svc.Device.RequestCode(ctx, publicClient, "openid")
	require.NoError(t, err)
	require.NoError(t, h.svc.Device.Approve(ctx, dc.UserCode, "user-7"))

	poll := func() (*TokenResponse, error) {
		return svc.Token.Exchange(ctx, TokenRequest{
			GrantType:  string(GrantDeviceCode),
			ClientID:   publicClient,
			DeviceCode: dc.DeviceCode,
		})
	}

	flaky.fail = true
	_, err = poll()
	assert.ErrorIs(t, err, ErrServerError)

	// move the poll clock back so the interval has passed
	row, err := h.store.DeviceCodes().GetByUserCode(ctx, dc.UserCode)
	require.NoError(t, err)
	require.NoError(t, h.store.DeviceCodes().RecordPoll(ctx, row.ID, time.Now().Add(-time.Minute), row.IntervalSeconds))

	resp, err := poll()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestDeviceDenied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dc, err := h.svc.Device.RequestCode(ctx, publicClient, "")
	require.NoError(t, err)
	require.NoError(t, h.svc.Device.Deny(ctx, dc.UserCode))

	_, err = h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:  string(GrantDeviceCode),
		ClientID:   publicClient,
		DeviceCode: dc.DeviceCode,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)

	// a denied code cannot be approved afterwards
	assert.ErrorIs(t, h.svc.Device.Approve(ctx, dc.UserCode, "user-1"), ErrInvalidGrant)
}

func TestDeviceExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const raw = "expired-device-code"
	require.NoError(t, h.store.DeviceCodes().Create(ctx, &repository.DeviceCode{
		ID:              "dc-expired",
		DeviceCodeHash:  tokens.SHA256Base64URL(raw),
		UserCode:        "WDJB-MJHT",
		ClientID:        publicClient,
		IntervalSeconds: 5,
		ExpiresAt:       time.Now().Add(-time.Minute),
	}))

	_, err := h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:  string(GrantDeviceCode),
		ClientID:   publicClient,
		DeviceCode: raw,
	})
	assert.ErrorIs(t, err, ErrExpiredToken)

	// the verification side reports the same
	assert.ErrorIs(t, h.svc.Device.Approve(ctx, "WDJB-MJHT", "user-1"), ErrExpiredToken)
}

func TestDeviceUserCodeNormalization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dc, err := h.svc.Device.RequestCode(ctx, publicClient, "")
	require.NoError(t, err)

	// lowercase and missing hyphen still resolve
	loose := "  " + dc.UserCode[:4] + dc.UserCode[5:] + " "
	require.NoError(t, h.svc.Device.Approve(ctx, loose, "user-1"))
}

func TestDeviceWrongClientPoll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dc, err := h.svc.Device.RequestCode(ctx, publicClient, "")
	require.NoError(t, err)

	_, err = h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantDeviceCode),
		ClientID:     machineClient,
		ClientSecret: testSecret,
		DeviceCode:   dc.DeviceCode,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}
