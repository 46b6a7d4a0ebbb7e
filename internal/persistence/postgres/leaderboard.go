package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/stepquest/internal/domain"
)

// StepTotals sums ledger rows with date in [from, to] per user, joined with
// profile and level data for presentation. A non-nil filter restricts the
// population.
func (r *Repository) StepTotals(ctx context.Context, from, to time.Time, filter []string) ([]domain.StepTotal, error) {
	query := `SELECT u.id, u.username, u.display_name, u.avatar_url,
            COALESCE(l.current_level, 1), SUM(s.steps_count)::bigint
        FROM step_logs s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN user_levels l ON l.user_id = s.user_id
        WHERE s.date BETWEEN $1 AND $2`
	args := []interface{}{domain.DateOf(from), domain.DateOf(to)}

	if filter != nil {
		query += ` AND s.user_id = ANY($3)`
		args = append(args, filter)
	}
	query += ` GROUP BY u.id, u.username, u.display_name, u.avatar_url, l.current_level`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTotals(rows)
}

// LifetimeTotals reads the denormalized lifetime counter instead of summing
// the ledger.
func (r *Repository) LifetimeTotals(ctx context.Context, filter []string) ([]domain.StepTotal, error) {
	query := `SELECT u.id, u.username, u.display_name, u.avatar_url,
            COALESCE(l.current_level, 1), u.total_steps_life
        FROM users u
        LEFT JOIN user_levels l ON l.user_id = u.id`
	args := []interface{}{}

	if filter != nil {
		query += ` WHERE u.id = ANY($1)`
		args = append(args, filter)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTotals(rows)
}

func collectTotals(rows pgx.Rows) ([]domain.StepTotal, error) {
	totals := make([]domain.StepTotal, 0, 32)
	for rows.Next() {
		var total domain.StepTotal
		var displayName string
		if err := rows.Scan(&total.UserID, &total.Username, &displayName, &total.AvatarURL,
			&total.Level, &total.Steps); err != nil {
			return nil, err
		}
		total.DisplayName = displayName
		if total.DisplayName == "" {
			total.DisplayName = total.Username
		}
		totals = append(totals, total)
	}
	return totals, rows.Err()
}
