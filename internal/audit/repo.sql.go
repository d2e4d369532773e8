package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs with pgx.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where := []string{"TRUE"}
	args := []any{}
	p := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filters.From.IsZero() {
		where = append(where, "occurred_at >= "+p(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "occurred_at < "+p(filters.To))
	}
	if filters.ActorID > 0 {
		where = append(where, "actor_id = "+p(filters.ActorID))
	}
	if filters.Entity != "" {
		where = append(where, "entity = "+p(strings.TrimSpace(filters.Entity)))
	}
	if filters.Action != "" {
		where = append(where, "action = "+p(strings.TrimSpace(filters.Action)))
	}

	query := fmt.Sprintf(`
		SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
		FROM audit_logs
		WHERE %s
		ORDER BY occurred_at DESC, id DESC
		OFFSET %s LIMIT %s`, strings.Join(where, " AND "), p(offset), p(limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
			at   time.Time
		)
		if err := rows.Scan(&row.ID, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta, &at); err != nil {
			return nil, fmt.Errorf("audit: scan timeline: %w", err)
		}
		row.At = at
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
