package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type authCodeRepo struct{ pool *pgxpool.Pool }

func (r *authCodeRepo) Create(ctx context.Context, code *repository.AuthorizationCode) error {
	const query = `
		INSERT INTO authorization_codes
			(id, user_id, client_id, scopes, challenge, challenge_method, redirect_uri,
			 expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, NOW())`
	_, err := r.pool.Exec(ctx, query,
		code.ID, code.UserID, code.ClientID, code.Scopes,
		code.Challenge, code.ChallengeMethod, code.RedirectURI, code.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *authCodeRepo) Get(ctx context.Context, id string) (*repository.AuthorizationCode, error) {
	const query = `
		SELECT id, user_id, client_id, scopes, challenge, challenge_method, redirect_uri,
			expires_at, revoked, created_at
		FROM authorization_codes WHERE id = $1`
	var c repository.AuthorizationCode
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.ClientID, &c.Scopes, &c.Challenge, &c.ChallengeMethod,
		&c.RedirectURI, &c.ExpiresAt, &c.Revoked, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *authCodeRepo) RevokeByClient(ctx context.Context, clientID string) error {
	const query = `UPDATE authorization_codes SET revoked = true WHERE client_id = $1`
	_, err := r.pool.Exec(ctx, query, clientID)
	return err
}

func (r *authCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM authorization_codes WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
