package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authgrid/internal/cache/memory"
	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	storememory "github.com/dropDatabas3/authgrid/internal/store/memory"
)

const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk_extra"
	testSecret    = "s3cret-value"
	testRedirect  = "https://app.example.com/callback"
	publicClient  = "web-app"
	machineClient = "backend-batch"
)

type harness struct {
	svc   Services
	store *storememory.Store
	iss   *jwtx.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st := storememory.New()
	iss, err := jwtx.NewIssuer("https://auth.example.com", "", time.Hour)
	require.NoError(t, err)

	for _, s := range []repository.Scope{
		{Name: "openid", IsDefault: true},
		{Name: "profile", IsDefault: true},
		{Name: "read", Description: "read access"},
		{Name: "write", Description: "write access"},
	} {
		require.NoError(t, st.Scopes().Upsert(ctx, s))
	}

	_, err = st.Clients().Create(ctx, repository.ClientInput{
		ClientID:     publicClient,
		Name:         "Web App",
		RedirectURIs: []string{testRedirect},
	})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.Clients().Create(ctx, repository.ClientInput{
		ClientID:   machineClient,
		Name:       "Batch Worker",
		SecretHash: string(hash),
	})
	require.NoError(t, err)

	svc := NewServices(Deps{
		Store:           st,
		Cache:           memory.New(time.Minute),
		Issuer:          iss,
		AccessTTL:       time.Hour,
		RefreshTTL:      720 * time.Hour,
		AuthCodeTTL:     10 * time.Minute,
		DeviceCodeTTL:   10 * time.Minute,
		DeviceInterval:  5,
		PARRequestTTL:   90 * time.Second,
		VerificationURI: "https://auth.example.com/device",
	})
	return &harness{svc: svc, store: st, iss: iss}
}

// failOnceStore fails the next token write, simulating a transient store
// outage during issuance.
type failOnceStore struct {
	*storememory.Store
	fail bool
}

func (s *failOnceStore) Tokens() repository.TokenRepository {
	return &failOnceTokens{TokenRepository: s.Store.Tokens(), s: s}
}

type failOnceTokens struct {
	repository.TokenRepository
	s *failOnceStore
}

func (t *failOnceTokens) ConsumeCodeAndCreatePair(ctx context.Context, codeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	if t.s.fail {
		t.s.fail = false
		return false, errors.New("store unavailable")
	}
	return t.TokenRepository.ConsumeCodeAndCreatePair(ctx, codeID, at, rt)
}

func (t *failOnceTokens) RedeemDeviceAndCreatePair(ctx context.Context, deviceCodeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	if t.s.fail {
		t.s.fail = false
		return false, errors.New("store unavailable")
	}
	return t.TokenRepository.RedeemDeviceAndCreatePair(ctx, deviceCodeID, at, rt)
}

// flakyServices builds a second service set over the harness's store wrapped
// in a failOnceStore, sharing all seeded data.
func (h *harness) flakyServices() (Services, *failOnceStore) {
	flaky := &failOnceStore{Store: h.store}
	svc := NewServices(Deps{
		Store:           flaky,
		Cache:           memory.New(time.Minute),
		Issuer:          h.iss,
		AccessTTL:       time.Hour,
		RefreshTTL:      720 * time.Hour,
		AuthCodeTTL:     10 * time.Minute,
		DeviceCodeTTL:   10 * time.Minute,
		DeviceInterval:  5,
		PARRequestTTL:   90 * time.Second,
		VerificationURI: "https://auth.example.com/device",
	})
	return svc, flaky
}

// repositoryClientInput is a public client scoped to an organization.
func repositoryClientInput(clientID, org string) repository.ClientInput {
	return repository.ClientInput{
		ClientID:       clientID,
		Name:           clientID,
		RedirectURIs:   []string{testRedirect},
		OrganizationID: &org,
	}
}

// mintCode puts a valid authorization code in the store and returns it.
func (h *harness) mintCode(t *testing.T, userID, scope string) string {
	t.Helper()
	challenge, err := pkce.Challenge(testVerifier, pkce.MethodS256)
	require.NoError(t, err)

	res, err := h.svc.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:            publicClient,
		RedirectURI:         testRedirect,
		ResponseType:        "code",
		Scope:               scope,
		State:               "xyz",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
		UserID:              userID,
	})
	require.NoError(t, err)
	return res.Code
}

func (h *harness) exchangeCode(code string) (*TokenResponse, error) {
	return h.svc.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    string(GrantAuthorizationCode),
		ClientID:     publicClient,
		Code:         code,
		RedirectURI:  testRedirect,
		CodeVerifier: testVerifier,
	})
}
