package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/metrics"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// slowDownPenalty is added to the required poll interval on every premature
// poll (RFC 8628 §3.5).
const slowDownPenalty = 5

// DeviceService implements the device authorization grant.
type DeviceService interface {
	// RequestCode starts a device authorization for a client.
	RequestCode(ctx context.Context, clientID, scope string) (*DeviceCodeResponse, error)

	// Approve binds the approving user to a pending user code.
	Approve(ctx context.Context, userCode, userID string) error

	// Deny rejects a pending user code.
	Deny(ctx context.Context, userCode string) error

	// Poll is the device_code grant: it returns the token pair once the
	// user approved, or one of the RFC 8628 pending states.
	Poll(ctx context.Context, client *repository.Client, deviceCode, jkt string) (*TokenResponse, error)
}

// DeviceCodeResponse is the RFC 8628 §3.2 body.
type DeviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceDeps contains dependencies for the device service.
type DeviceDeps struct {
	Store           store.Store
	Issuer          *jwtx.Issuer
	Clients         *ClientRegistry
	Scopes          *ScopeRegistry
	VerificationURI string
	CodeTTL         time.Duration
	Interval        int
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
}

type deviceService struct {
	store           store.Store
	issuer          *jwtx.Issuer
	clients         *ClientRegistry
	scopes          *ScopeRegistry
	verificationURI string
	codeTTL         time.Duration
	interval        int
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

func NewDeviceService(d DeviceDeps) DeviceService {
	if d.CodeTTL <= 0 {
		d.CodeTTL = 10 * time.Minute
	}
	if d.Interval <= 0 {
		d.Interval = 5
	}
	if d.AccessTTL <= 0 {
		d.AccessTTL = time.Hour
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = 30 * 24 * time.Hour
	}
	return &deviceService{
		store:           d.Store,
		issuer:          d.Issuer,
		clients:         d.Clients,
		scopes:          d.Scopes,
		verificationURI: d.VerificationURI,
		codeTTL:         d.CodeTTL,
		interval:        d.Interval,
		accessTTL:       d.AccessTTL,
		refreshTTL:      d.RefreshTTL,
	}
}

func (s *deviceService) RequestCode(ctx context.Context, clientID, scope string) (*DeviceCodeResponse, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	scopes, err := s.scopes.Resolve(ctx, scope)
	if err != nil {
		return nil, err
	}

	deviceCode, err := tokens.GenerateOpaque(32)
	if err != nil {
		return nil, ErrServerError
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, ErrServerError
	}

	// user_code collisions among pending codes are possible; retry a few
	// times before giving up
	for attempt := 0; attempt < 3; attempt++ {
		userCode, err := tokens.GenerateUserCode()
		if err != nil {
			return nil, ErrServerError
		}
		dc := &repository.DeviceCode{
			ID:              id.String(),
			DeviceCodeHash:  tokens.SHA256Base64URL(deviceCode),
			UserCode:        userCode,
			ClientID:        client.ClientID,
			Scopes:          scopes,
			IntervalSeconds: s.interval,
			ExpiresAt:       time.Now().UTC().Add(s.codeTTL),
		}
		err = s.store.DeviceCodes().Create(ctx, dc)
		if repository.IsConflict(err) {
			continue
		}
		if err != nil {
			return nil, ErrServerError
		}
		return &DeviceCodeResponse{
			DeviceCode:              deviceCode,
			UserCode:                userCode,
			VerificationURI:         s.verificationURI,
			VerificationURIComplete: s.verificationURI + "?user_code=" + userCode,
			ExpiresIn:               int64(s.codeTTL.Seconds()),
			Interval:                s.interval,
		}, nil
	}
	return nil, ErrServerError
}

func (s *deviceService) Approve(ctx context.Context, userCode, userID string) error {
	dc, err := s.lookupByUserCode(ctx, userCode)
	if err != nil {
		return err
	}
	ok, err := s.store.DeviceCodes().Authorize(ctx, dc.ID, userID)
	if err != nil {
		return ErrServerError
	}
	if !ok {
		return ErrInvalidGrant
	}
	return nil
}

func (s *deviceService) Deny(ctx context.Context, userCode string) error {
	dc, err := s.lookupByUserCode(ctx, userCode)
	if err != nil {
		return err
	}
	ok, err := s.store.DeviceCodes().Deny(ctx, dc.ID)
	if err != nil {
		return ErrServerError
	}
	if !ok {
		return ErrInvalidGrant
	}
	return nil
}

func (s *deviceService) lookupByUserCode(ctx context.Context, userCode string) (*repository.DeviceCode, error) {
	dc, err := s.store.DeviceCodes().GetByUserCode(ctx, tokens.NormalizeUserCode(userCode))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidGrant
		}
		return nil, ErrServerError
	}
	if time.Now().After(dc.ExpiresAt) {
		return nil, ErrExpiredToken
	}
	return dc, nil
}

func (s *deviceService) Poll(ctx context.Context, client *repository.Client, deviceCode, jkt string) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.device.poll"))

	dc, err := s.store.DeviceCodes().GetByDeviceCodeHash(ctx, tokens.SHA256Base64URL(deviceCode))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.pollResult(ErrInvalidGrant)
		}
		return nil, ErrServerError
	}
	if dc.ClientID != client.ClientID {
		return nil, s.pollResult(ErrInvalidGrant)
	}

	now := time.Now().UTC()
	if now.After(dc.ExpiresAt) {
		return nil, s.pollResult(ErrExpiredToken)
	}
	if dc.Revoked {
		// already redeemed (or killed): the code is spent
		return nil, s.pollResult(ErrInvalidGrant)
	}
	if dc.Denied {
		return nil, s.pollResult(ErrAccessDenied)
	}

	// premature polls grow the required interval; the penalty persists
	if dc.LastPolledAt != nil && now.Sub(*dc.LastPolledAt) < time.Duration(dc.IntervalSeconds)*time.Second {
		if err := s.store.DeviceCodes().RecordPoll(ctx, dc.ID, now, dc.IntervalSeconds+slowDownPenalty); err != nil {
			log.Error("record poll", logger.Err(err))
		}
		return nil, s.pollResult(ErrSlowDown)
	}
	if err := s.store.DeviceCodes().RecordPoll(ctx, dc.ID, now, dc.IntervalSeconds); err != nil {
		log.Error("record poll", logger.Err(err))
	}

	if !dc.UserAuthorized {
		return nil, s.pollResult(ErrAuthorizationPending)
	}

	// single redemption: one of N concurrent polls wins, and the redemption
	// commits together with the token insert
	resp, won, err := s.redeemPair(ctx, dc, client, jkt)
	if err != nil {
		return nil, ErrServerError
	}
	if !won {
		return nil, s.pollResult(ErrInvalidGrant)
	}
	metrics.DevicePolls.WithLabelValues("ok").Inc()
	return resp, nil
}

func (s *deviceService) pollResult(err error) error {
	metrics.DevicePolls.WithLabelValues(err.Error()).Inc()
	return err
}

// redeemPair signs the pair first, then redeems the device code and inserts
// the rows in one store transaction. A signing or store failure before the
// commit leaves the code redeemable on the next poll.
func (s *deviceService) redeemPair(ctx context.Context, dc *repository.DeviceCode, client *repository.Client, jkt string) (*TokenResponse, bool, error) {
	ts := &tokenService{
		store:      s.store,
		issuer:     s.issuer,
		accessTTL:  s.accessTTL,
		refreshTTL: s.refreshTTL,
	}
	at, rt, rawRefresh, err := ts.buildPair(dc.UserID, client, dc.Scopes, jkt)
	if err != nil {
		return nil, false, err
	}
	signed, exp, err := s.issuer.IssueAccess(at.ID, dc.UserID, client.ClientID, dc.Scopes, jkt, s.accessTTL)
	if err != nil {
		return nil, false, err
	}
	at.ExpiresAt = exp

	won, err := s.store.Tokens().RedeemDeviceAndCreatePair(ctx, dc.ID, at, rt)
	if err != nil || !won {
		return nil, won, err
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    tokenType(jkt),
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: rawRefresh,
		Scope:        strings.Join(dc.Scopes, " "),
	}, true, nil
}
