package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type tokenRepo struct{ pool *pgxpool.Pool }

const insertAccess = `
	INSERT INTO access_tokens (id, user_id, client_id, scopes, jkt, expires_at, revoked, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, false, NOW())`

const insertRefresh = `
	INSERT INTO refresh_tokens (id, access_token_id, token_hash, expires_at, revoked, created_at)
	VALUES ($1, $2, $3, $4, false, NOW())`

func (r *tokenRepo) CreatePair(ctx context.Context, at *repository.AccessToken, rt *repository.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertAccess,
		at.ID, at.UserID, at.ClientID, at.Scopes, at.JKT, at.ExpiresAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}
	if rt != nil {
		if _, err := tx.Exec(ctx, insertRefresh,
			rt.ID, rt.AccessTokenID, rt.TokenHash, rt.ExpiresAt); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrConflict
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) GetAccess(ctx context.Context, id string) (*repository.AccessToken, error) {
	const query = `
		SELECT id, user_id, client_id, scopes, jkt, expires_at, revoked, created_at
		FROM access_tokens WHERE id = $1`
	var at repository.AccessToken
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&at.ID, &at.UserID, &at.ClientID, &at.Scopes, &at.JKT,
		&at.ExpiresAt, &at.Revoked, &at.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *tokenRepo) GetRefreshByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const query = `
		SELECT id, access_token_id, token_hash, expires_at, revoked, rotated_to, created_at
		FROM refresh_tokens WHERE token_hash = $1`
	var rt repository.RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&rt.ID, &rt.AccessTokenID, &rt.TokenHash, &rt.ExpiresAt,
		&rt.Revoked, &rt.RotatedTo, &rt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ConsumeCodeAndCreatePair consumes the authorization code and inserts the
// pair in one transaction. The conditional update decides the winner under
// concurrent exchange; a failed insert rolls the consumption back so the
// code is not burned by a transient store error.
func (r *tokenRepo) ConsumeCodeAndCreatePair(ctx context.Context, codeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE authorization_codes SET revoked = true
		WHERE id = $1 AND revoked = false`, codeID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertPair(ctx, tx, at, rt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RedeemDeviceAndCreatePair revokes the device code for its single token
// delivery and inserts the pair in the same transaction.
func (r *tokenRepo) RedeemDeviceAndCreatePair(ctx context.Context, deviceCodeID string, at *repository.AccessToken, rt *repository.RefreshToken) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE device_codes SET revoked = true
		WHERE id = $1 AND revoked = false`, deviceCodeID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertPair(ctx, tx, at, rt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func insertPair(ctx context.Context, tx pgx.Tx, at *repository.AccessToken, rt *repository.RefreshToken) error {
	if _, err := tx.Exec(ctx, insertAccess,
		at.ID, at.UserID, at.ClientID, at.Scopes, at.JKT, at.ExpiresAt); err != nil {
		return err
	}
	if rt != nil {
		if _, err := tx.Exec(ctx, insertRefresh,
			rt.ID, rt.AccessTokenID, rt.TokenHash, rt.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// Rotate revokes the old pair and inserts the new one in one transaction.
// The conditional update decides the winner under concurrent rotation; the
// loser rolls back with rotated=false and inserts nothing.
func (r *tokenRepo) Rotate(ctx context.Context, oldRefreshID string, newAT *repository.AccessToken, newRT *repository.RefreshToken) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true, rotated_to = $2
		WHERE id = $1 AND revoked = false`, oldRefreshID, newRT.ID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE access_tokens SET revoked = true
		WHERE id = (SELECT access_token_id FROM refresh_tokens WHERE id = $1)`, oldRefreshID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, insertAccess,
		newAT.ID, newAT.UserID, newAT.ClientID, newAT.Scopes, newAT.JKT, newAT.ExpiresAt); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, insertRefresh,
		newRT.ID, newRT.AccessTokenID, newRT.TokenHash, newRT.ExpiresAt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *tokenRepo) RevokeAccess(ctx context.Context, accessTokenID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE access_tokens SET revoked = true WHERE id = $1`, accessTokenID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE access_token_id = $1`, accessTokenID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) RevokeRefresh(ctx context.Context, refreshTokenID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE id = $1`, refreshTokenID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE access_tokens SET revoked = true
		WHERE id = (SELECT access_token_id FROM refresh_tokens WHERE id = $1)`, refreshTokenID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RevokeDescendants walks the rotated_to chain with a recursive CTE and
// revokes every pair it reaches.
func (r *tokenRepo) RevokeDescendants(ctx context.Context, refreshTokenID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const chain = `
		WITH RECURSIVE chain AS (
			SELECT id, access_token_id, rotated_to FROM refresh_tokens WHERE id = $1
			UNION ALL
			SELECT rt.id, rt.access_token_id, rt.rotated_to
			FROM refresh_tokens rt
			JOIN chain c ON rt.id = c.rotated_to
		)`
	if _, err := tx.Exec(ctx, chain+`
		UPDATE refresh_tokens SET revoked = true
		WHERE id IN (SELECT id FROM chain)`, refreshTokenID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, chain+`
		UPDATE access_tokens SET revoked = true
		WHERE id IN (SELECT access_token_id FROM chain)`, refreshTokenID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE access_tokens SET revoked = true
		WHERE user_id = $1 AND revoked = false`, userID)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true
		WHERE access_token_id IN (SELECT id FROM access_tokens WHERE user_id = $1)`, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *tokenRepo) RevokeAllByClient(ctx context.Context, clientID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE access_tokens SET revoked = true WHERE client_id = $1`, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true
		WHERE access_token_id IN (SELECT id FROM access_tokens WHERE client_id = $1)`, clientID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rtTag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	atTag, err := tx.Exec(ctx, `
		DELETE FROM access_tokens
		WHERE expires_at < $1
		AND id NOT IN (SELECT access_token_id FROM refresh_tokens)`, before)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return rtTag.RowsAffected() + atTag.RowsAffected(), nil
}
