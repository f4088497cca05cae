// Package memory is the in-process store driver, used for tests and for
// running the server without Postgres. All repositories share one mutex so
// cross-repo cascades stay atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type Store struct {
	mu sync.Mutex

	clients     map[string]*repository.Client // by client_id
	scopes      map[string]repository.Scope
	authCodes   map[string]*repository.AuthorizationCode
	accessToks  map[string]*repository.AccessToken
	refreshToks map[string]*repository.RefreshToken // by id
	refreshByH  map[string]string                   // token_hash → id
	deviceCodes map[string]*repository.DeviceCode
	members     map[string]map[string]bool // org → user set
}

func New() *Store {
	return &Store{
		clients:     make(map[string]*repository.Client),
		scopes:      make(map[string]repository.Scope),
		authCodes:   make(map[string]*repository.AuthorizationCode),
		accessToks:  make(map[string]*repository.AccessToken),
		refreshToks: make(map[string]*repository.RefreshToken),
		refreshByH:  make(map[string]string),
		deviceCodes: make(map[string]*repository.DeviceCode),
		members:     make(map[string]map[string]bool),
	}
}

func (s *Store) Clients() repository.ClientRepository              { return (*clientRepo)(s) }
func (s *Store) Scopes() repository.ScopeRepository                { return (*scopeRepo)(s) }
func (s *Store) AuthCodes() repository.AuthorizationCodeRepository { return (*authCodeRepo)(s) }
func (s *Store) Tokens() repository.TokenRepository                { return (*tokenRepo)(s) }
func (s *Store) DeviceCodes() repository.DeviceCodeRepository      { return (*deviceRepo)(s) }
func (s *Store) Orgs() repository.OrgMembershipRepository          { return (*orgRepo)(s) }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func cloneClient(c *repository.Client) *repository.Client {
	cp := *c
	cp.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	if c.OrganizationID != nil {
		v := *c.OrganizationID
		cp.OrganizationID = &v
	}
	return &cp
}

// ─── clients ───

type clientRepo Store

func (r *clientRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneClient(c), nil
}

func (r *clientRepo) Create(ctx context.Context, input repository.ClientInput) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[input.ClientID]; exists {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	c := &repository.Client{
		ID:             newID(),
		ClientID:       input.ClientID,
		Name:           input.Name,
		SecretHash:     input.SecretHash,
		RedirectURIs:   append([]string(nil), input.RedirectURIs...),
		OrganizationID: input.OrganizationID,
		PersonalAccess: input.PersonalAccess,
		PasswordClient: input.PasswordClient,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.clients[c.ClientID] = c
	return cloneClient(c), nil
}

func (r *clientRepo) Update(ctx context.Context, input repository.ClientInput) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[input.ClientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Name = input.Name
	c.SecretHash = input.SecretHash
	c.RedirectURIs = append([]string(nil), input.RedirectURIs...)
	c.OrganizationID = input.OrganizationID
	c.PersonalAccess = input.PersonalAccess
	c.PasswordClient = input.PasswordClient
	c.UpdatedAt = time.Now().UTC()
	return cloneClient(c), nil
}

func (r *clientRepo) Revoke(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Revoked = true
	c.UpdatedAt = time.Now().UTC()
	for _, code := range r.authCodes {
		if code.ClientID == clientID {
			code.Revoked = true
		}
	}
	for _, at := range r.accessToks {
		if at.ClientID == clientID {
			at.Revoked = true
		}
	}
	for _, rt := range r.refreshToks {
		if at, ok := r.accessToks[rt.AccessTokenID]; ok && at.ClientID == clientID {
			rt.Revoked = true
		}
	}
	for _, dc := range r.deviceCodes {
		if dc.ClientID == clientID {
			dc.Revoked = true
		}
	}
	return nil
}

// ─── scopes ───

type scopeRepo Store

func (r *scopeRepo) GetByName(ctx context.Context, name string) (*repository.Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scopes[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (r *scopeRepo) List(ctx context.Context) ([]repository.Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.Scope, 0, len(r.scopes))
	for _, s := range r.scopes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *scopeRepo) Defaults(ctx context.Context) ([]repository.Scope, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.IsDefault {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *scopeRepo) Upsert(ctx context.Context, s repository.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(s.Name) == "" {
		return repository.ErrInvalidInput
	}
	r.scopes[s.Name] = s
	return nil
}

// ─── authorization codes ───

type authCodeRepo Store

func (r *authCodeRepo) Create(ctx context.Context, code *repository.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.authCodes[code.ID]; exists {
		return repository.ErrConflict
	}
	cp := *code
	cp.Scopes = append([]string(nil), code.Scopes...)
	r.authCodes[code.ID] = &cp
	return nil
}

func (r *authCodeRepo) Get(ctx context.Context, id string) (*repository.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.authCodes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	return &cp, nil
}

func (r *authCodeRepo) RevokeByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.authCodes {
		if c.ClientID == clientID {
			c.Revoked = true
		}
	}
	return nil
}

func (r *authCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.authCodes {
		if c.ExpiresAt.Before(before) {
			delete(r.authCodes, id)
			n++
		}
	}
	return n, nil
}

// ─── tokens ───

type tokenRepo Store

func (r *tokenRepo) CreatePair(ctx context.Context, at *repository.AccessToken, rt *repository.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createPairLocked(at, rt)
}

func (r *tokenRepo) createPairLocked(at *repository.AccessToken, rt *repository.RefreshToken) error {
	if _, exists := r.accessToks[at.ID]; exists {
		return repository.ErrConflict
	}
	atCp := *at
	atCp.Scopes = append([]string(nil), at.Scopes...)
	if atCp.CreatedAt.IsZero() {
		atCp.CreatedAt = time.Now().UTC()
	}
	r.accessToks[at.ID] = &atCp
	if rt != nil {
		if _, exists := r.refreshToks[rt.ID]; exists {
			return repository.ErrConflict
		}
		rtCp := *rt
		if rtCp.CreatedAt.IsZero() {
			rtCp.CreatedAt = time.Now().UTC()
		}
		r.refreshToks[rt.ID] = &rtCp
		r.refreshByH[rt.TokenHash] = rt.ID
	}
	return nil
}

// ConsumeCodeAndCreatePair flips the code's consumed flag and inserts the
// pair under the one store mutex; a failed insert leaves the code untouched.
func (r *tokenRepo) ConsumeCodeAndCreatePair(ctx context.Context, codeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.authCodes[codeID]
	if !ok || c.Revoked {
		return false, nil
	}
	if err := r.createPairLocked(at, rt); err != nil {
		return false, err
	}
	c.Revoked = true
	return true, nil
}

// RedeemDeviceAndCreatePair revokes the device code for its one token
// delivery and inserts the pair under the same lock.
func (r *tokenRepo) RedeemDeviceAndCreatePair(ctx context.Context, deviceCodeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.deviceCodes[deviceCodeID]
	if !ok || dc.Revoked {
		return false, nil
	}
	if err := r.createPairLocked(at, rt); err != nil {
		return false, err
	}
	dc.Revoked = true
	return true, nil
}

func (r *tokenRepo) GetAccess(ctx context.Context, id string) (*repository.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.accessToks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *at
	cp.Scopes = append([]string(nil), at.Scopes...)
	return &cp, nil
}

func (r *tokenRepo) GetRefreshByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.refreshByH[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rt := r.refreshToks[id]
	cp := *rt
	if rt.RotatedTo != nil {
		v := *rt.RotatedTo
		cp.RotatedTo = &v
	}
	return &cp, nil
}

func (r *tokenRepo) Rotate(ctx context.Context, oldRefreshID string, newAT *repository.AccessToken, newRT *repository.RefreshToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.refreshToks[oldRefreshID]
	if !ok || old.Revoked {
		return false, nil
	}
	old.Revoked = true
	old.RotatedTo = &newRT.ID
	if at, ok := r.accessToks[old.AccessTokenID]; ok {
		at.Revoked = true
	}
	if err := r.createPairLocked(newAT, newRT); err != nil {
		return false, err
	}
	return true, nil
}

func (r *tokenRepo) RevokeAccess(ctx context.Context, accessTokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.accessToks[accessTokenID]; ok {
		at.Revoked = true
	}
	for _, rt := range r.refreshToks {
		if rt.AccessTokenID == accessTokenID {
			rt.Revoked = true
		}
	}
	return nil
}

func (r *tokenRepo) RevokeRefresh(ctx context.Context, refreshTokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.refreshToks[refreshTokenID]
	if !ok {
		return nil
	}
	rt.Revoked = true
	if at, ok := r.accessToks[rt.AccessTokenID]; ok {
		at.Revoked = true
	}
	return nil
}

func (r *tokenRepo) RevokeDescendants(ctx context.Context, refreshTokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := refreshTokenID
	for id != "" {
		rt, ok := r.refreshToks[id]
		if !ok {
			return nil
		}
		rt.Revoked = true
		if at, ok := r.accessToks[rt.AccessTokenID]; ok {
			at.Revoked = true
		}
		if rt.RotatedTo == nil {
			return nil
		}
		id = *rt.RotatedTo
	}
	return nil
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, at := range r.accessToks {
		if at.UserID == userID && !at.Revoked {
			at.Revoked = true
			n++
		}
	}
	for _, rt := range r.refreshToks {
		if at, ok := r.accessToks[rt.AccessTokenID]; ok && at.UserID == userID {
			rt.Revoked = true
		}
	}
	return n, nil
}

func (r *tokenRepo) RevokeAllByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, at := range r.accessToks {
		if at.ClientID == clientID {
			at.Revoked = true
		}
	}
	for _, rt := range r.refreshToks {
		if at, ok := r.accessToks[rt.AccessTokenID]; ok && at.ClientID == clientID {
			rt.Revoked = true
		}
	}
	return nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rt := range r.refreshToks {
		if rt.ExpiresAt.Before(before) {
			delete(r.refreshByH, rt.TokenHash)
			delete(r.refreshToks, id)
			n++
		}
	}
	for id, at := range r.accessToks {
		if at.ExpiresAt.Before(before) {
			delete(r.accessToks, id)
			n++
		}
	}
	return n, nil
}

// ─── device codes ───

type deviceRepo Store

func (r *deviceRepo) Create(ctx context.Context, dc *repository.DeviceCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.deviceCodes[dc.ID]; exists {
		return repository.ErrConflict
	}
	for _, other := range r.deviceCodes {
		if other.UserCode == dc.UserCode && !other.Revoked && other.ExpiresAt.After(time.Now()) {
			return repository.ErrConflict
		}
	}
	cp := *dc
	cp.Scopes = append([]string(nil), dc.Scopes...)
	r.deviceCodes[dc.ID] = &cp
	return nil
}

func cloneDevice(dc *repository.DeviceCode) *repository.DeviceCode {
	cp := *dc
	cp.Scopes = append([]string(nil), dc.Scopes...)
	if dc.LastPolledAt != nil {
		v := *dc.LastPolledAt
		cp.LastPolledAt = &v
	}
	return &cp
}

func (r *deviceRepo) GetByDeviceCodeHash(ctx context.Context, hash string) (*repository.DeviceCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dc := range r.deviceCodes {
		if dc.DeviceCodeHash == hash {
			return cloneDevice(dc), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *deviceRepo) GetByUserCode(ctx context.Context, userCode string) (*repository.DeviceCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dc := range r.deviceCodes {
		if dc.UserCode == userCode {
			return cloneDevice(dc), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *deviceRepo) Authorize(ctx context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.deviceCodes[id]
	if !ok || dc.UserAuthorized || dc.Denied || dc.Revoked {
		return false, nil
	}
	dc.UserAuthorized = true
	dc.UserID = userID
	return true, nil
}

func (r *deviceRepo) Deny(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.deviceCodes[id]
	if !ok || dc.UserAuthorized || dc.Denied || dc.Revoked {
		return false, nil
	}
	dc.Denied = true
	return true, nil
}

func (r *deviceRepo) RecordPoll(ctx context.Context, id string, at time.Time, intervalSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.deviceCodes[id]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	dc.LastPolledAt = &t
	dc.IntervalSeconds = intervalSeconds
	return nil
}

func (r *deviceRepo) RevokeByClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dc := range r.deviceCodes {
		if dc.ClientID == clientID {
			dc.Revoked = true
		}
	}
	return nil
}

func (r *deviceRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, dc := range r.deviceCodes {
		if dc.ExpiresAt.Before(before) {
			delete(r.deviceCodes, id)
			n++
		}
	}
	return n, nil
}

// ─── org membership ───

type orgRepo Store

func (r *orgRepo) IsMember(ctx context.Context, organizationID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[organizationID][userID], nil
}

func (r *orgRepo) AddMember(ctx context.Context, organizationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[organizationID]
	if !ok {
		set = make(map[string]bool)
		r.members[organizationID] = set
	}
	set[userID] = true
	return nil
}
