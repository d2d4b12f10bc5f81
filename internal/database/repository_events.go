package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateEmailEvent inserts one processed-email record
func (r *Repository) CreateEmailEvent(ctx context.Context, event *EmailEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO email_events (id, user_id, machine_id, email, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		event.ID, event.UserID, event.MachineID, event.Email, event.Status,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create email event: %w", err)
	}

	return nil
}

// ListEmailEvents returns one page of events, newest first. An empty userID
// lists everyone's events (admin view).
func (r *Repository) ListEmailEvents(ctx context.Context, userID string, limit, offset int) ([]EmailEvent, int64, error) {
	countQuery := `SELECT COUNT(*) FROM email_events WHERE ($1 = '' OR user_id::text = $1)`

	var total int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count email events: %w", err)
	}

	query := `
		SELECT id, user_id, machine_id, email, status, created_at
		FROM email_events
		WHERE ($1 = '' OR user_id::text = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list email events: %w", err)
	}
	defer rows.Close()

	var events []EmailEvent
	for rows.Next() {
		var e EmailEvent
		err := rows.Scan(&e.ID, &e.UserID, &e.MachineID, &e.Email, &e.Status, &e.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan email event: %w", err)
		}
		events = append(events, e)
	}

	return events, total, rows.Err()
}
