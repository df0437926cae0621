package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

const clickColumns = `id, link_id, user_id, ip_address, user_agent, country, city, device, browser, created_at, updated_at`

// dimensionExprs maps each dimension to the SQL expression grouped on.
// Only these expressions are ever interpolated into queries.
var dimensionExprs = map[model.Dimension]string{
	model.DimensionCountry: "country",
	model.DimensionCity:    "city",
	model.DimensionDevice:  "device",
	model.DimensionBrowser: "browser",
	model.DimensionLink:    "link_id",
	model.DimensionDay:     "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')",
}

// InsertClick stores a click event. Inserting an ID that already exists is a
// no-op.
func (r *Repository) InsertClick(ctx context.Context, event *model.ClickEvent) error {
	query := `
		INSERT INTO click_events (
			id, link_id, user_id, ip_address, user_agent,
			country, city, device, browser, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.LinkID,
		event.UserID,
		event.IPAddress,
		event.UserAgent,
		event.Country,
		event.City,
		event.Device,
		event.Browser,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return apperr.Store("click", event.ID, err)
	}

	return nil
}

// CountClicks counts the clicks matching filter.
func (r *Repository) CountClicks(ctx context.Context, filter model.ClickFilter) (int64, error) {
	where, args := filterClause(filter, nil)

	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM click_events WHERE TRUE`+where, args...).Scan(&n); err != nil {
		return 0, apperr.Store("click", "count", err)
	}
	return n, nil
}

// GroupClicks counts the clicks matching filter per value of dim. Null and
// blank values are left out. Groups are ordered by count descending, ties
// broken by the group's earliest click.
func (r *Repository) GroupClicks(ctx context.Context, dim model.Dimension, filter model.ClickFilter) ([]model.Bucket, error) {
	return r.groupClicks(ctx, dim, filter, 0, 0)
}

// GroupClicksByLink is GroupClicks on the link dimension with pagination.
func (r *Repository) GroupClicksByLink(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]model.Bucket, error) {
	return r.groupClicks(ctx, model.DimensionLink, filter, offset, limit)
}

// CountDistinctLinks counts the links having at least one click matching filter.
func (r *Repository) CountDistinctLinks(ctx context.Context, filter model.ClickFilter) (int64, error) {
	where, args := filterClause(filter, nil)

	var n int64
	query := `SELECT COUNT(DISTINCT link_id) FROM click_events WHERE TRUE` + where
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperr.Store("click", "distinct_links", err)
	}
	return n, nil
}

// FindClickByID returns a single click.
func (r *Repository) FindClickByID(ctx context.Context, id string) (*model.ClickEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clickColumns+` FROM click_events WHERE id = $1`, id)
	if err != nil {
		return nil, apperr.Store("click", id, err)
	}
	defer rows.Close()

	events, err := collectClicks(rows)
	if err != nil {
		return nil, apperr.Store("click", id, err)
	}
	if len(events) == 0 {
		return nil, apperr.NotFound("click", id)
	}
	return events[0], nil
}

// FindClicks returns the clicks matching filter, newest first, skipping
// offset rows. A limit of zero returns all remaining rows.
func (r *Repository) FindClicks(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]*model.ClickEvent, error) {
	where, args := filterClause(filter, nil)

	query := `SELECT ` + clickColumns + ` FROM click_events WHERE TRUE` + where + ` ORDER BY created_at DESC, id DESC`
	if offset > 0 {
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("click", "find", err)
	}
	defer rows.Close()

	events, err := collectClicks(rows)
	if err != nil {
		return nil, apperr.Store("click", "find", err)
	}
	return events, nil
}

// FindClicksByLinkIDs returns every click of the given links, oldest first.
func (r *Repository) FindClicksByLinkIDs(ctx context.Context, linkIDs []string) ([]*model.ClickEvent, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + clickColumns + ` FROM click_events WHERE link_id = ANY($1) ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, linkIDs)
	if err != nil {
		return nil, apperr.Store("click", "link_ids", err)
	}
	defer rows.Close()

	events, err := collectClicks(rows)
	if err != nil {
		return nil, apperr.Store("click", "link_ids", err)
	}
	return events, nil
}

func (r *Repository) groupClicks(ctx context.Context, dim model.Dimension, filter model.ClickFilter, offset, limit int) ([]model.Bucket, error) {
	expr, ok := dimensionExprs[dim]
	if !ok {
		return nil, apperr.InvalidArgument("dimension", fmt.Sprintf("unsupported dimension %q", dim))
	}

	where, args := filterClause(filter, nil)
	query := fmt.Sprintf(`
		SELECT %[1]s AS value, COUNT(*) AS clicks
		FROM click_events
		WHERE %[1]s IS NOT NULL AND btrim(%[1]s) <> ''%[2]s
		GROUP BY 1
		ORDER BY clicks DESC, MIN(created_at) ASC, value ASC
	`, expr, where)

	if offset > 0 {
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("click", string(dim), err)
	}
	defer rows.Close()

	var buckets []model.Bucket
	for rows.Next() {
		var b model.Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, apperr.Store("click", string(dim), err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("click", string(dim), err)
	}

	return buckets, nil
}

// filterClause renders filter as " AND ..." conditions numbered after args.
func filterClause(filter model.ClickFilter, args []any) (string, []any) {
	var where string
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filter.LinkID != "" {
		args = append(args, filter.LinkID)
		where += ` AND link_id = $` + strconv.Itoa(len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	for _, c := range []struct{ column, value string }{
		{"country", filter.Country},
		{"city", filter.City},
		{"device", filter.Device},
		{"browser", filter.Browser},
	} {
		if c.value == "" {
			continue
		}
		args = append(args, escapeLike(c.value))
		where += ` AND ` + c.column + ` ILIKE '%' || $` + strconv.Itoa(len(args)) + ` || '%'`
	}
	return where, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func collectClicks(rows pgx.Rows) ([]*model.ClickEvent, error) {
	var events []*model.ClickEvent
	for rows.Next() {
		var e model.ClickEvent
		err := rows.Scan(
			&e.ID,
			&e.LinkID,
			&e.UserID,
			&e.IPAddress,
			&e.UserAgent,
			&e.Country,
			&e.City,
			&e.Device,
			&e.Browser,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
