package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type scopeRepo struct{ pool *pgxpool.Pool }

func (r *scopeRepo) GetByName(ctx context.Context, name string) (*repository.Scope, error) {
	const query = `SELECT name, description, is_default FROM scopes WHERE name = $1`
	var s repository.Scope
	err := r.pool.QueryRow(ctx, query, name).Scan(&s.Name, &s.Description, &s.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scopeRepo) List(ctx context.Context) ([]repository.Scope, error) {
	const query = `SELECT name, description, is_default FROM scopes ORDER BY name`
	return r.query(ctx, query)
}

func (r *scopeRepo) Defaults(ctx context.Context) ([]repository.Scope, error) {
	const query = `SELECT name, description, is_default FROM scopes WHERE is_default ORDER BY name`
	return r.query(ctx, query)
}

func (r *scopeRepo) query(ctx context.Context, query string) ([]repository.Scope, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Scope
	for rows.Next() {
		var s repository.Scope
		if err := rows.Scan(&s.Name, &s.Description, &s.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *scopeRepo) Upsert(ctx context.Context, s repository.Scope) error {
	if s.Name == "" {
		return repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO scopes (name, description, is_default)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = $2, is_default = $3`
	_, err := r.pool.Exec(ctx, query, s.Name, s.Description, s.IsDefault)
	return err
}
