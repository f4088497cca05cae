package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospectAccessToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair, err := h.exchangeCode(h.mintCode(t, "user-1", "openid profile"))
	require.NoError(t, err)

	resp := h.svc.Introspect.Introspect(ctx, pair.AccessToken, "")
	assert.True(t, resp.Active)
	assert.Equal(t, "user-1", resp.Sub)
	assert.Equal(t, publicClient, resp.ClientID)
	assert.Equal(t, "openid profile", resp.Scope)
	assert.NotEmpty(t, resp.Jti)
}

func TestIntrospectRefreshToken(t *testing.T) {
	h := newHarness(t)
	pair, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	resp := h.svc.Introspect.Introspect(context.Background(), pair.RefreshToken, "refresh_token")
	assert.True(t, resp.Active)
	assert.Equal(t, "refresh_token", resp.TokenType)
	assert.Equal(t, "user-1", resp.Sub)
	assert.Positive(t, resp.Iat, "refresh iat must reflect the stored creation time")
}

func TestIntrospectNeverAnOracle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		resp := h.svc.Introspect.Introspect(ctx, token, "")
		assert.False(t, resp.Active)
		assert.Empty(t, resp.Sub)
		assert.Empty(t, resp.Scope)
	}
}

func TestIntrospectRevokedInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	claims, err := h.iss.Parse(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.store.Tokens().RevokeAccess(ctx, claims.ID))

	assert.False(t, h.svc.Introspect.Introspect(ctx, pair.AccessToken, "").Active)
	assert.False(t, h.svc.Introspect.Introspect(ctx, pair.RefreshToken, "refresh_token").Active)
}

func TestRevokePairCascade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	client, err := h.svc.Clients.Get(ctx, publicClient)
	require.NoError(t, err)

	// revoking the refresh token kills the access token too
	require.NoError(t, h.svc.Revoke.Revoke(ctx, client, pair.RefreshToken, "refresh_token"))
	assert.False(t, h.svc.Introspect.Introspect(ctx, pair.AccessToken, "").Active)

	// and doing it again still succeeds
	require.NoError(t, h.svc.Revoke.Revoke(ctx, client, pair.RefreshToken, "refresh_token"))
}

func TestRevokeUnknownTokenSucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client, err := h.svc.Clients.Get(ctx, publicClient)
	require.NoError(t, err)

	assert.NoError(t, h.svc.Revoke.Revoke(ctx, client, "not-a-token", ""))
	assert.NoError(t, h.svc.Revoke.Revoke(ctx, client, "", ""))
}

func TestRevokeForeignTokenIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	other, err := h.svc.Clients.Authenticate(ctx, machineClient, testSecret)
	require.NoError(t, err)

	// another client revoking my token silently does nothing
	require.NoError(t, h.svc.Revoke.Revoke(ctx, other, pair.AccessToken, ""))
	assert.True(t, h.svc.Introspect.Introspect(ctx, pair.AccessToken, "").Active)
}
