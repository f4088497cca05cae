package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type clientRepo struct{ pool *pgxpool.Pool }

const clientColumns = `id, client_id, name, secret_hash, redirect_uris, organization_id,
	personal_access, password_client, revoked, created_at, updated_at`

func scanClient(row pgx.Row) (*repository.Client, error) {
	var c repository.Client
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Name, &c.SecretHash, &c.RedirectURIs, &c.OrganizationID,
		&c.PersonalAccess, &c.PasswordClient, &c.Revoked, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	const query = `SELECT ` + clientColumns + ` FROM clients WHERE client_id = $1`
	return scanClient(r.pool.QueryRow(ctx, query, clientID))
}

func (r *clientRepo) Create(ctx context.Context, input repository.ClientInput) (*repository.Client, error) {
	const query = `
		INSERT INTO clients (id, client_id, name, secret_hash, redirect_uris, organization_id,
			personal_access, password_client, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, NOW(), NOW())
		RETURNING ` + clientColumns
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	c, err := scanClient(r.pool.QueryRow(ctx, query,
		id.String(), input.ClientID, input.Name, input.SecretHash, input.RedirectURIs,
		input.OrganizationID, input.PersonalAccess, input.PasswordClient,
	))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return c, err
}

func (r *clientRepo) Update(ctx context.Context, input repository.ClientInput) (*repository.Client, error) {
	const query = `
		UPDATE clients
		SET name = $2, secret_hash = $3, redirect_uris = $4, organization_id = $5,
			personal_access = $6, password_client = $7, updated_at = NOW()
		WHERE client_id = $1
		RETURNING ` + clientColumns
	return scanClient(r.pool.QueryRow(ctx, query,
		input.ClientID, input.Name, input.SecretHash, input.RedirectURIs,
		input.OrganizationID, input.PersonalAccess, input.PasswordClient,
	))
}

// Revoke kills the client and everything derived from it in one transaction.
func (r *clientRepo) Revoke(ctx context.Context, clientID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE clients SET revoked = true, updated_at = NOW() WHERE client_id = $1`, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE authorization_codes SET revoked = true WHERE client_id = $1`, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE access_tokens SET revoked = true WHERE client_id = $1`, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = true
		WHERE access_token_id IN (SELECT id FROM access_tokens WHERE client_id = $1)`, clientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE device_codes SET revoked = true WHERE client_id = $1`, clientID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type orgRepo struct{ pool *pgxpool.Pool }

func (r *orgRepo) IsMember(ctx context.Context, organizationID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2
		)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, organizationID, userID).Scan(&ok)
	return ok, err
}

func (r *orgRepo) AddMember(ctx context.Context, organizationID, userID string) error {
	const query = `
		INSERT INTO organization_members (organization_id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (organization_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, organizationID, userID)
	return err
}
