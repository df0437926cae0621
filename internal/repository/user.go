package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

// FindUserByID retrieves a user by their ID.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, full_name, email, role, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, apperr.Store("user", id, err)
	}

	return &user, nil
}

// FindUserSummariesByIDs returns the summaries of the given users keyed by ID.
func (r *Repository) FindUserSummariesByIDs(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	out := make(map[string]*model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, full_name, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, apperr.Store("user", "ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.UserSummary
		if err := rows.Scan(&s.ID, &s.FullName, &s.Email); err != nil {
			return nil, apperr.Store("user", "ids", err)
		}
		out[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("user", "ids", err)
	}

	return out, nil
}

// CountUsers returns the number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, apperr.Store("user", "count", err)
	}
	return n, nil
}

// CountUsersByRole returns the number of users holding role.
func (r *Repository) CountUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, apperr.Store("user", string(role), err)
	}
	return n, nil
}
