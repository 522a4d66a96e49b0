package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal/session"
	"github.com/jmoiron/sqlx"
)

const statsQuery = `
SELECT
	COUNT(*) FILTER (WHERE is_active AND expires_at > $1)                 AS active_sessions,
	COUNT(DISTINCT user_id) FILTER (WHERE is_active AND expires_at > $1)  AS active_users,
	COUNT(*) FILTER (WHERE created_at > $2)                               AS created_last_24h,
	COUNT(*) FILTER (WHERE NOT is_active)                                 AS inactive_rows
FROM user_sessions`

// StatsRepository reads aggregate counters straight off the pool; the
// FILTER aggregates are Postgres-only.
type StatsRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db, now: time.Now}
}

func (r *StatsRepository) Stats(ctx context.Context) (*session.Stats, error) {
	now := r.now().UTC()

	var stats session.Stats
	if err := r.db.GetContext(ctx, &stats, statsQuery, now, now.Add(-24*time.Hour)); err != nil {
		return nil, fmt.Errorf("query session stats: %w", err)
	}
	return &stats, nil
}
