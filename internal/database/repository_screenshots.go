package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateScreenshot inserts a screenshot metadata row
func (r *Repository) CreateScreenshot(ctx context.Context, s *Screenshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO screenshots (id, user_id, machine_id, filename, size_bytes, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.MachineID, s.Filename, s.SizeBytes, s.Note,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create screenshot: %w", err)
	}

	return nil
}

// GetScreenshot retrieves one screenshot row by ID. Returns nil when absent.
func (r *Repository) GetScreenshot(ctx context.Context, id string) (*Screenshot, error) {
	query := `
		SELECT id, user_id, machine_id, filename, size_bytes, note, created_at
		FROM screenshots
		WHERE id = $1
	`

	var s Screenshot
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.MachineID, &s.Filename, &s.SizeBytes, &s.Note, &s.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get screenshot: %w", err)
	}

	return &s, nil
}

// ListScreenshots returns one page of screenshots, newest first. An empty
// userID lists the whole fleet (admin view).
func (r *Repository) ListScreenshots(ctx context.Context, userID string, limit, offset int) ([]Screenshot, int64, error) {
	countQuery := `SELECT COUNT(*) FROM screenshots WHERE ($1 = '' OR user_id::text = $1)`

	var total int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count screenshots: %w", err)
	}

	query := `
		SELECT id, user_id, machine_id, filename, size_bytes, note, created_at
		FROM screenshots
		WHERE ($1 = '' OR user_id::text = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list screenshots: %w", err)
	}
	defer rows.Close()

	var screenshots []Screenshot
	for rows.Next() {
		var s Screenshot
		err := rows.Scan(&s.ID, &s.UserID, &s.MachineID, &s.Filename, &s.SizeBytes, &s.Note, &s.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		screenshots = append(screenshots, s)
	}

	return screenshots, total, rows.Err()
}

// DeleteScreenshot removes one screenshot row
func (r *Repository) DeleteScreenshot(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM screenshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete screenshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("screenshot not found: %s", id)
	}
	return nil
}

// ListScreenshotsOlderThan returns rows created before the cutoff, for cleanup
func (r *Repository) ListScreenshotsOlderThan(ctx context.Context, cutoff time.Time) ([]Screenshot, error) {
	query := `
		SELECT id, user_id, machine_id, filename, size_bytes, note, created_at
		FROM screenshots
		WHERE created_at < $1
	`

	rows, err := r.db.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list old screenshots: %w", err)
	}
	defer rows.Close()

	var screenshots []Screenshot
	for rows.Next() {
		var s Screenshot
		err := rows.Scan(&s.ID, &s.UserID, &s.MachineID, &s.Filename, &s.SizeBytes, &s.Note, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		screenshots = append(screenshots, s)
	}

	return screenshots, rows.Err()
}
