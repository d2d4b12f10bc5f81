package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IncrementDailyStat bumps today's counter for one logged email in a single
// atomic upsert. The success rate is recomputed inside the same statement so
// concurrent writers cannot lose updates.
func (r *Repository) IncrementDailyStat(ctx context.Context, userID string, date time.Time, success bool) (*DailyStat, error) {
	added := 0
	failed := 0
	if success {
		added = 1
	} else {
		failed = 1
	}

	query := `
		INSERT INTO daily_stats (id, user_id, stat_date, emails_added, emails_failed, success_rate)
		VALUES ($1, $2, $3, $4, $5,
			CASE WHEN $4 + $5 > 0 THEN $4::decimal / ($4 + $5) * 100 ELSE 0 END)
		ON CONFLICT (user_id, stat_date)
		DO UPDATE SET
			emails_added = daily_stats.emails_added + EXCLUDED.emails_added,
			emails_failed = daily_stats.emails_failed + EXCLUDED.emails_failed,
			success_rate = CASE
				WHEN daily_stats.emails_added + EXCLUDED.emails_added
				   + daily_stats.emails_failed + EXCLUDED.emails_failed > 0
				THEN (daily_stats.emails_added + EXCLUDED.emails_added)::decimal
				   / (daily_stats.emails_added + EXCLUDED.emails_added
				    + daily_stats.emails_failed + EXCLUDED.emails_failed) * 100
				ELSE 0
			END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, user_id, stat_date, emails_added, emails_failed,
		          accounts_used, success_rate, total_time_minutes, created_at, updated_at
	`

	var s DailyStat
	err := r.db.Pool.QueryRow(ctx, query,
		uuid.New().String(), userID, date, added, failed,
	).Scan(
		&s.ID, &s.UserID, &s.StatDate, &s.EmailsAdded, &s.EmailsFailed,
		&s.AccountsUsed, &s.SuccessRate, &s.TotalTimeMinutes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment daily stat: %w", err)
	}

	return &s, nil
}

// UpsertDailyStat writes absolute counter values for one user/day. Used for
// administrative corrections; the success rate is derived in the statement.
func (r *Repository) UpsertDailyStat(ctx context.Context, stat *DailyStat) error {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}

	query := `
		INSERT INTO daily_stats (id, user_id, stat_date, emails_added, emails_failed,
			accounts_used, total_time_minutes, success_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			CASE WHEN $4 + $5 > 0 THEN $4::decimal / ($4 + $5) * 100 ELSE 0 END)
		ON CONFLICT (user_id, stat_date)
		DO UPDATE SET
			emails_added = EXCLUDED.emails_added,
			emails_failed = EXCLUDED.emails_failed,
			accounts_used = EXCLUDED.accounts_used,
			total_time_minutes = EXCLUDED.total_time_minutes,
			success_rate = EXCLUDED.success_rate,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, success_rate, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		stat.ID, stat.UserID, stat.StatDate, stat.EmailsAdded, stat.EmailsFailed,
		stat.AccountsUsed, stat.TotalTimeMinutes,
	).Scan(&stat.ID, &stat.SuccessRate, &stat.CreatedAt, &stat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat: %w", err)
	}

	return nil
}

// GetDailyStat retrieves one user/day row. Returns nil when absent.
func (r *Repository) GetDailyStat(ctx context.Context, userID string, date time.Time) (*DailyStat, error) {
	query := `
		SELECT id, user_id, stat_date, emails_added, emails_failed,
		       accounts_used, success_rate, total_time_minutes, created_at, updated_at
		FROM daily_stats
		WHERE user_id = $1 AND stat_date = $2
	`

	var s DailyStat
	err := r.db.Pool.QueryRow(ctx, query, userID, date).Scan(
		&s.ID, &s.UserID, &s.StatDate, &s.EmailsAdded, &s.EmailsFailed,
		&s.AccountsUsed, &s.SuccessRate, &s.TotalTimeMinutes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily stat: %w", err)
	}

	return &s, nil
}

// ListDailyStats returns up to limit daily rows for a user, newest first
func (r *Repository) ListDailyStats(ctx context.Context, userID string, limit int) ([]DailyStat, error) {
	query := `
		SELECT id, user_id, stat_date, emails_added, emails_failed,
		       accounts_used, success_rate, total_time_minutes, created_at, updated_at
		FROM daily_stats
		WHERE user_id = $1
		ORDER BY stat_date DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	return scanDailyStats(rows)
}

func scanDailyStats(rows pgx.Rows) ([]DailyStat, error) {
	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		err := rows.Scan(
			&s.ID, &s.UserID, &s.StatDate, &s.EmailsAdded, &s.EmailsFailed,
			&s.AccountsUsed, &s.SuccessRate, &s.TotalTimeMinutes, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// AggregateDailyRange rolls up a user's daily rows over [from, to] inclusive.
// The success rate is the average of the daily rates, not a rate recomputed
// from the summed counts, and accounts_used is summed across days; both match
// the rollup tables consumers already reconcile against. Returns nil when the
// window holds no rows.
func (r *Repository) AggregateDailyRange(ctx context.Context, userID string, from, to time.Time) (*PeriodSummary, error) {
	query := `
		SELECT COALESCE(SUM(emails_added), 0),
		       COALESCE(SUM(emails_failed), 0),
		       COALESCE(SUM(accounts_used), 0),
		       COALESCE(AVG(success_rate), 0),
		       COALESCE(SUM(total_time_minutes), 0),
		       COUNT(*)
		FROM daily_stats
		WHERE user_id = $1 AND stat_date BETWEEN $2 AND $3
	`

	var p PeriodSummary
	err := r.db.Pool.QueryRow(ctx, query, userID, from, to).Scan(
		&p.EmailsAdded, &p.EmailsFailed, &p.AccountsUsed, &p.SuccessRate, &p.TotalTimeMinutes, &p.ActiveDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily range: %w", err)
	}

	if p.ActiveDays == 0 {
		return nil, nil
	}

	return &p, nil
}

// GetPeakDay returns the date with the most emails added in [from, to],
// along with its count. Returns nil when the window holds no rows.
func (r *Repository) GetPeakDay(ctx context.Context, userID string, from, to time.Time) (*time.Time, int, error) {
	query := `
		SELECT stat_date, emails_added
		FROM daily_stats
		WHERE user_id = $1 AND stat_date BETWEEN $2 AND $3
		ORDER BY emails_added DESC, stat_date ASC
		LIMIT 1
	`

	var day time.Time
	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, from, to).Scan(&day, &count)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get peak day: %w", err)
	}

	return &day, count, nil
}

// AllTimeSummary rolls up every daily row of a user, with the same averaged
// success rate and summed accounts_used as the windowed aggregate
func (r *Repository) AllTimeSummary(ctx context.Context, userID string) (*PeriodSummary, error) {
	query := `
		SELECT COALESCE(SUM(emails_added), 0),
		       COALESCE(SUM(emails_failed), 0),
		       COALESCE(SUM(accounts_used), 0),
		       COALESCE(AVG(success_rate), 0),
		       COALESCE(SUM(total_time_minutes), 0),
		       COUNT(DISTINCT stat_date)
		FROM daily_stats
		WHERE user_id = $1
	`

	var p PeriodSummary
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&p.EmailsAdded, &p.EmailsFailed, &p.AccountsUsed, &p.SuccessRate, &p.TotalTimeMinutes, &p.ActiveDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get all-time summary: %w", err)
	}

	return &p, nil
}

// UpsertWeeklyStat materializes one Monday-aligned weekly rollup
func (r *Repository) UpsertWeeklyStat(ctx context.Context, stat *WeeklyStat) error {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}

	query := `
		INSERT INTO weekly_stats (id, user_id, week_start, week_end, emails_added,
			emails_failed, accounts_used, success_rate, total_time_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, week_start)
		DO UPDATE SET
			week_end = EXCLUDED.week_end,
			emails_added = EXCLUDED.emails_added,
			emails_failed = EXCLUDED.emails_failed,
			accounts_used = EXCLUDED.accounts_used,
			success_rate = EXCLUDED.success_rate,
			total_time_minutes = EXCLUDED.total_time_minutes,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		stat.ID, stat.UserID, stat.WeekStart, stat.WeekEnd, stat.EmailsAdded,
		stat.EmailsFailed, stat.AccountsUsed, stat.SuccessRate, stat.TotalTimeMinutes,
	).Scan(&stat.ID, &stat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly stat: %w", err)
	}

	return nil
}

// ListWeeklyStats returns up to limit weekly rollups, newest first
func (r *Repository) ListWeeklyStats(ctx context.Context, userID string, limit int) ([]WeeklyStat, error) {
	query := `
		SELECT id, user_id, week_start, week_end, emails_added, emails_failed,
		       accounts_used, success_rate, total_time_minutes, updated_at
		FROM weekly_stats
		WHERE user_id = $1
		ORDER BY week_start DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly stats: %w", err)
	}
	defer rows.Close()

	var stats []WeeklyStat
	for rows.Next() {
		var s WeeklyStat
		err := rows.Scan(
			&s.ID, &s.UserID, &s.WeekStart, &s.WeekEnd, &s.EmailsAdded, &s.EmailsFailed,
			&s.AccountsUsed, &s.SuccessRate, &s.TotalTimeMinutes, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weekly stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// UpsertMonthlyStat materializes one calendar-month rollup
func (r *Repository) UpsertMonthlyStat(ctx context.Context, stat *MonthlyStat) error {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}

	query := `
		INSERT INTO monthly_stats (id, user_id, month, year, emails_added, emails_failed,
			accounts_used, success_rate, total_time_minutes, peak_day, peak_day_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, month, year)
		DO UPDATE SET
			emails_added = EXCLUDED.emails_added,
			emails_failed = EXCLUDED.emails_failed,
			accounts_used = EXCLUDED.accounts_used,
			success_rate = EXCLUDED.success_rate,
			total_time_minutes = EXCLUDED.total_time_minutes,
			peak_day = EXCLUDED.peak_day,
			peak_day_count = EXCLUDED.peak_day_count,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		stat.ID, stat.UserID, stat.Month, stat.Year, stat.EmailsAdded, stat.EmailsFailed,
		stat.AccountsUsed, stat.SuccessRate, stat.TotalTimeMinutes, stat.PeakDay, stat.PeakDayCount,
	).Scan(&stat.ID, &stat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly stat: %w", err)
	}

	return nil
}

// ListMonthlyStats returns up to limit monthly rollups, newest first
func (r *Repository) ListMonthlyStats(ctx context.Context, userID string, limit int) ([]MonthlyStat, error) {
	query := `
		SELECT id, user_id, month, year, emails_added, emails_failed,
		       accounts_used, success_rate, total_time_minutes, peak_day, peak_day_count, updated_at
		FROM monthly_stats
		WHERE user_id = $1
		ORDER BY year DESC, month DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly stats: %w", err)
	}
	defer rows.Close()

	var stats []MonthlyStat
	for rows.Next() {
		var s MonthlyStat
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Month, &s.Year, &s.EmailsAdded, &s.EmailsFailed,
			&s.AccountsUsed, &s.SuccessRate, &s.TotalTimeMinutes, &s.PeakDay, &s.PeakDayCount, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// CreateActivitySession opens a new work session for a user
func (r *Repository) CreateActivitySession(ctx context.Context, session *ActivitySession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO activity_sessions (id, user_id, machine_id)
		VALUES ($1, $2, $3)
		RETURNING started_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.MachineID,
	).Scan(&session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity session: %w", err)
	}

	return nil
}

// GetActivitySession retrieves one session by ID. Returns nil when absent.
func (r *Repository) GetActivitySession(ctx context.Context, id string) (*ActivitySession, error) {
	query := `
		SELECT id, user_id, machine_id, started_at, ended_at, duration_minutes
		FROM activity_sessions
		WHERE id = $1
	`

	var s ActivitySession
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.MachineID, &s.StartedAt, &s.EndedAt, &s.DurationMinutes,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity session: %w", err)
	}

	return &s, nil
}

// CloseActivitySession stamps the end of an open session. A second close is
// a no-op so double end calls cannot double-count time.
func (r *Repository) CloseActivitySession(ctx context.Context, id string, endedAt time.Time, minutes int) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE activity_sessions
		SET ended_at = $2, duration_minutes = $3
		WHERE id = $1 AND ended_at IS NULL
	`, id, endedAt, minutes)
	if err != nil {
		return false, fmt.Errorf("failed to close activity session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// AddDailyTime adds session minutes to one user/day counter
func (r *Repository) AddDailyTime(ctx context.Context, userID string, date time.Time, minutes int) error {
	query := `
		INSERT INTO daily_stats (id, user_id, stat_date, total_time_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, stat_date)
		DO UPDATE SET
			total_time_minutes = daily_stats.total_time_minutes + EXCLUDED.total_time_minutes,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), userID, date, minutes); err != nil {
		return fmt.Errorf("failed to add daily time: %w", err)
	}

	return nil
}
