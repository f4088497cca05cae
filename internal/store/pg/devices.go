package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type deviceRepo struct{ pool *pgxpool.Pool }

const deviceColumns = `id, device_code_hash, user_code, client_id, user_id, scopes,
	interval_seconds, last_polled_at, user_authorized, denied, expires_at, revoked, created_at`

func scanDevice(row pgx.Row) (*repository.DeviceCode, error) {
	var dc repository.DeviceCode
	err := row.Scan(
		&dc.ID, &dc.DeviceCodeHash, &dc.UserCode, &dc.ClientID, &dc.UserID, &dc.Scopes,
		&dc.IntervalSeconds, &dc.LastPolledAt, &dc.UserAuthorized, &dc.Denied,
		&dc.ExpiresAt, &dc.Revoked, &dc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

func (r *deviceRepo) Create(ctx context.Context, dc *repository.DeviceCode) error {
	const query = `
		INSERT INTO device_codes
			(id, device_code_hash, user_code, client_id, user_id, scopes, interval_seconds,
			 user_authorized, denied, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, $8, false, NOW())`
	_, err := r.pool.Exec(ctx, query,
		dc.ID, dc.DeviceCodeHash, dc.UserCode, dc.ClientID, dc.UserID, dc.Scopes,
		dc.IntervalSeconds, dc.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *deviceRepo) GetByDeviceCodeHash(ctx context.Context, hash string) (*repository.DeviceCode, error) {
	const query = `SELECT ` + deviceColumns + ` FROM device_codes WHERE device_code_hash = $1`
	return scanDevice(r.pool.QueryRow(ctx, query, hash))
}

func (r *deviceRepo) GetByUserCode(ctx context.Context, userCode string) (*repository.DeviceCode, error) {
	const query = `SELECT ` + deviceColumns + ` FROM device_codes WHERE user_code = $1`
	return scanDevice(r.pool.QueryRow(ctx, query, userCode))
}

func (r *deviceRepo) Authorize(ctx context.Context, id, userID string) (bool, error) {
	const query = `
		UPDATE device_codes SET user_authorized = true, user_id = $2
		WHERE id = $1 AND user_authorized = false AND denied = false AND revoked = false`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *deviceRepo) Deny(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE device_codes SET denied = true
		WHERE id = $1 AND user_authorized = false AND denied = false AND revoked = false`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *deviceRepo) RecordPoll(ctx context.Context, id string, at time.Time, intervalSeconds int) error {
	const query = `UPDATE device_codes SET last_polled_at = $2, interval_seconds = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, at, intervalSeconds)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *deviceRepo) RevokeByClient(ctx context.Context, clientID string) error {
	const query = `UPDATE device_codes SET revoked = true WHERE client_id = $1`
	_, err := r.pool.Exec(ctx, query, clientID)
	return err
}

func (r *deviceRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM device_codes WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
