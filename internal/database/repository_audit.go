package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertAuditEntry appends one audit record
func (r *Repository) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_log (id, user_id, action, entity_type, entity_id, details, ip)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''))
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.EntityType,
		entry.EntityID, entry.Details, entry.IP,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListAuditEntries returns recent audit records, optionally filtered by action
func (r *Repository) ListAuditEntries(ctx context.Context, action string, limit int) ([]AuditEntry, error) {
	query := `
		SELECT id, user_id, action, COALESCE(entity_type, ''), COALESCE(entity_id, ''),
		       details, COALESCE(ip, ''), created_at
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, action, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Details, &e.IP, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CreateNotification inserts an admin notification
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, kind, message, entity_type, entity_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		n.ID, n.Kind, n.Message, n.EntityType, n.EntityID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListNotifications returns recent notifications, unread first
func (r *Repository) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	query := `
		SELECT id, kind, message, entity_type, entity_id, read, created_at
		FROM notifications
		WHERE (NOT $1 OR NOT read)
		ORDER BY read ASC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(&n.ID, &n.Kind, &n.Message, &n.EntityType, &n.EntityID, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead flags one notification as read
func (r *Repository) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}
	return nil
}
