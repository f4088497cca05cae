package oauth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCodeGrant(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid profile")

	resp, err := h.exchangeCode(code)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.InDelta(t, 3600, resp.ExpiresIn, 5)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "openid profile", resp.Scope)

	claims, err := h.iss.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, publicClient, claims.ClientID)
}

func TestAuthorizationCodeReplay(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid")

	_, err := h.exchangeCode(code)
	require.NoError(t, err)

	_, err = h.exchangeCode(code)
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCodeConcurrentExchange(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid")

	const n = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.exchangeCode(code); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	got := 0
	for range successes {
		got++
	}
	assert.Equal(t, 1, got, "exactly one concurrent exchange must succeed")
}

// A transient store failure during issuance must not burn the code: the
// consumption commits together with the token insert, so retrying the same
// code succeeds.
func TestAuthorizationCodeSurvivesStoreFailure(t *testing.T) {
	h := newHarness(t)
	svc, flaky := h.flakyServices()
	code := h.mintCode(t, "user-1", "openid")

	exchange := func() (*TokenResponse, error) {
		return svc.Token.Exchange(context.Background(), TokenRequest{
			GrantType:    string(GrantAuthorizationCode),
			ClientID:     publicClient,
			Code:         code,
			RedirectURI:  testRedirect,
			CodeVerifier: testVerifier,
		})
	}

	flaky.fail = true
	_, err := exchange()
	assert.ErrorIs(t, err, ErrServerError)

	resp, err := exchange()
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	// the retry spent the code
	_, err = exchange()
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCodeWrongVerifier(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid")

	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantAuthorizationCode),
		ClientID:     publicClient,
		Code:         code,
		RedirectURI:  testRedirect,
		CodeVerifier: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCodeMissingVerifier(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid")

	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:   string(GrantAuthorizationCode),
		ClientID:    publicClient,
		Code:        code,
		RedirectURI: testRedirect,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuthorizationCodeRedirectMismatch(t *testing.T) {
	h := newHarness(t)
	code := h.mintCode(t, "user-1", "openid")

	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantAuthorizationCode),
		ClientID:     publicClient,
		Code:         code,
		RedirectURI:  testRedirect + "/",
		CodeVerifier: testVerifier,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestClientCredentials(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantClientCredentials),
		ClientID:     machineClient,
		ClientSecret: testSecret,
		Scope:        "read write",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken, "machine tokens carry no refresh token")
	assert.Equal(t, "read write", resp.Scope)

	claims, err := h.iss.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, machineClient, claims.Subject)
}

func TestClientCredentialsBadSecret(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantClientCredentials),
		ClientID:     machineClient,
		ClientSecret: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestClientCredentialsPublicClientRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType: string(GrantClientCredentials),
		ClientID:  publicClient,
	})
	assert.ErrorIs(t, err, ErrUnauthorizedClient)
}

func TestPasswordGrantRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType: "password",
		ClientID:  publicClient,
	})
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestUnknownGrantRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType: "implicit",
		ClientID:  publicClient,
	})
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestRefreshRotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.exchangeCode(h.mintCode(t, "user-1", "openid profile"))
	require.NoError(t, err)

	refresh := func(raw, scope string) (*TokenResponse, error) {
		return h.svc.Token.Exchange(ctx, TokenRequest{
			GrantType:    string(GrantRefreshToken),
			ClientID:     publicClient,
			RefreshToken: raw,
			Scope:        scope,
		})
	}

	second, err := refresh(first.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "openid profile", second.Scope)

	// the rotated-out token is dead
	_, err = refresh(first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	// and its reuse killed the whole lineage
	_, err = refresh(second.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefreshScopeNarrowing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.exchangeCode(h.mintCode(t, "user-1", "openid profile"))
	require.NoError(t, err)

	narrowed, err := h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantRefreshToken),
		ClientID:     publicClient,
		RefreshToken: first.RefreshToken,
		Scope:        "openid",
	})
	require.NoError(t, err)
	assert.Equal(t, "openid", narrowed.Scope)

	// widening back is invalid_scope
	_, err = h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantRefreshToken),
		ClientID:     publicClient,
		RefreshToken: narrowed.RefreshToken,
		Scope:        "openid profile",
	})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefreshWrongClient(t *testing.T) {
	h := newHarness(t)
	first, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	_, err = h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantRefreshToken),
		ClientID:     machineClient,
		ClientSecret: testSecret,
		RefreshToken: first.RefreshToken,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestTokenExchange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.exchangeCode(h.mintCode(t, "user-1", "openid profile"))
	require.NoError(t, err)

	resp, err := h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:        string(GrantTokenExchange),
		ClientID:         machineClient,
		ClientSecret:     testSecret,
		SubjectToken:     first.AccessToken,
		SubjectTokenType: subjectTokenTypeAccess,
		Scope:            "openid",
	})
	require.NoError(t, err)
	assert.Equal(t, "openid", resp.Scope)

	claims, err := h.iss.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, machineClient, claims.ClientID)
}

func TestTokenExchangeRevokedSubject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.exchangeCode(h.mintCode(t, "user-1", "openid"))
	require.NoError(t, err)

	claims, err := h.iss.Parse(first.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.store.Tokens().RevokeAccess(ctx, claims.ID))

	_, err = h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantTokenExchange),
		ClientID:     machineClient,
		ClientSecret: testSecret,
		SubjectToken: first.AccessToken,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestDPoPBoundIssueAndRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code := h.mintCode(t, "user-1", "openid")

	resp, err := h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantAuthorizationCode),
		ClientID:     publicClient,
		Code:         code,
		RedirectURI:  testRedirect,
		CodeVerifier: testVerifier,
		JKT:          "thumb-a",
	})
	require.NoError(t, err)
	assert.Equal(t, "DPoP", resp.TokenType)

	claims, err := h.iss.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "thumb-a", claims.JKT)

	// rotation under a different key fails
	_, err = h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantRefreshToken),
		ClientID:     publicClient,
		RefreshToken: resp.RefreshToken,
		JKT:          "thumb-b",
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)

	// same key rotates fine and stays bound
	rotated, err := h.svc.Token.Exchange(ctx, TokenRequest{
		GrantType:    string(GrantRefreshToken),
		ClientID:     publicClient,
		RefreshToken: resp.RefreshToken,
		JKT:          "thumb-a",
	})
	require.NoError(t, err)
	assert.Equal(t, "DPoP", rotated.TokenType)
}
