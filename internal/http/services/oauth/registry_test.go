package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

func TestClientAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.svc.Clients.Authenticate(ctx, machineClient, testSecret)
	require.NoError(t, err)
	assert.True(t, c.Confidential())

	_, err = h.svc.Clients.Authenticate(ctx, machineClient, "nope")
	assert.ErrorIs(t, err, ErrInvalidClient)

	// confidential client without a secret is not authenticated
	_, err = h.svc.Clients.Authenticate(ctx, machineClient, "")
	assert.ErrorIs(t, err, ErrInvalidClient)

	// public client authenticates by identity alone
	_, err = h.svc.Clients.Authenticate(ctx, publicClient, "")
	require.NoError(t, err)

	// but presenting a secret it does not have is wrong
	_, err = h.svc.Clients.Authenticate(ctx, publicClient, "anything")
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = h.svc.Clients.Authenticate(ctx, "ghost", "")
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestRevokedClientRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Clients().Revoke(ctx, publicClient))
	_, err := h.svc.Clients.Get(ctx, publicClient)
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestRedirectURIExactMatch(t *testing.T) {
	h := newHarness(t)
	c, err := h.svc.Clients.Get(context.Background(), publicClient)
	require.NoError(t, err)

	assert.NoError(t, h.svc.Clients.ValidateRedirectURI(c, testRedirect))
	assert.Error(t, h.svc.Clients.ValidateRedirectURI(c, testRedirect+"/"), "trailing slash is a different URI")
	assert.Error(t, h.svc.Clients.ValidateRedirectURI(c, "https://app.example.com/CALLBACK"))
	assert.Error(t, h.svc.Clients.ValidateRedirectURI(c, ""))
}

func TestUserHasAccessOrgScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	org := "org-1"
	hash, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = h.store.Clients().Create(ctx, repository.ClientInput{
		ClientID:       "org-app",
		Name:           "Org App",
		SecretHash:     string(hash),
		OrganizationID: &org,
	})
	require.NoError(t, err)
	require.NoError(t, h.store.Orgs().AddMember(ctx, org, "member-1"))

	c, err := h.svc.Clients.Get(ctx, "org-app")
	require.NoError(t, err)

	ok, err := h.svc.Clients.UserHasAccess(ctx, c, "member-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.svc.Clients.UserHasAccess(ctx, c, "outsider")
	require.NoError(t, err)
	assert.False(t, ok)

	// global clients are open to everyone
	global, err := h.svc.Clients.Get(ctx, publicClient)
	require.NoError(t, err)
	ok, err = h.svc.Clients.UserHasAccess(ctx, global, "outsider")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScopeResolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	got, err := h.svc.Scopes.Resolve(ctx, "read write")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, got)

	// empty request yields the defaults
	got, err = h.svc.Scopes.Resolve(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"openid", "profile"}, got)

	// duplicates collapse
	got, err = h.svc.Scopes.Resolve(ctx, "read read")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, got)

	_, err = h.svc.Scopes.Resolve(ctx, "read admin")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestScopeNarrow(t *testing.T) {
	h := newHarness(t)
	granted := []string{"openid", "profile", "read"}

	got, err := h.svc.Scopes.Narrow(granted, nil)
	require.NoError(t, err)
	assert.Equal(t, granted, got)

	got, err = h.svc.Scopes.Narrow(granted, []string{"read"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, got)

	_, err = h.svc.Scopes.Narrow(granted, []string{"read", "write"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}
