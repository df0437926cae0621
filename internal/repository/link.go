package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

const linkColumns = `id, short_code, original_url, COALESCE(title, ''), user_id, is_active, created_at, updated_at`

// FindLinkByID retrieves a link by its ID.
func (r *Repository) FindLinkByID(ctx context.Context, id string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`

	link, err := scanLink(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("link", id)
		}
		return nil, apperr.Store("link", id, err)
	}

	return link, nil
}

// FindLinkByShortCode retrieves a link by its short code.
func (r *Repository) FindLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("link", shortCode)
		}
		return nil, apperr.Store("link", shortCode, err)
	}

	return link, nil
}

// CountLinks returns the number of links.
func (r *Repository) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`).Scan(&n); err != nil {
		return 0, apperr.Store("link", "count", err)
	}
	return n, nil
}

// FindLinksByIDs retrieves the links with the given IDs in no particular
// order. Unknown IDs are ignored.
func (r *Repository) FindLinksByIDs(ctx context.Context, ids []string) ([]*model.Link, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + linkColumns + ` FROM links WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, apperr.Store("link", "ids", err)
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	if err != nil {
		return nil, apperr.Store("link", "ids", err)
	}
	return links, nil
}

// ListLinksCreatedBetween returns links created in [start, end], oldest
// first. A nil bound is open.
func (r *Repository) ListLinksCreatedBetween(ctx context.Context, start, end *time.Time, offset, limit int) ([]*model.Link, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at ASC, id ASC
		OFFSET $3 LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, start, end, offset, limit)
	if err != nil {
		return nil, apperr.Store("link", "window", err)
	}
	defer rows.Close()

	links, err := collectLinks(rows)
	if err != nil {
		return nil, apperr.Store("link", "window", err)
	}
	return links, nil
}

// CountLinksCreatedBetween counts links created in [start, end].
func (r *Repository) CountLinksCreatedBetween(ctx context.Context, start, end *time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM links
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
	`

	var n int64
	if err := r.pool.QueryRow(ctx, query, start, end).Scan(&n); err != nil {
		return 0, apperr.Store("link", "window", err)
	}
	return n, nil
}

func collectLinks(rows pgx.Rows) ([]*model.Link, error) {
	var links []*model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// scanLink scans a row into a Link.
func scanLink(row pgx.Row) (*model.Link, error) {
	var link model.Link
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.Title,
		&link.UserID,
		&link.IsActive,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
