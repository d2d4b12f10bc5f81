package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertHeartbeat records a liveness report for one user+machine pair. The
// paused flag is owned by admins and deliberately left out of the update set.
func (r *Repository) UpsertHeartbeat(ctx context.Context, hb *Heartbeat) error {
	if hb.ID == "" {
		hb.ID = uuid.New().String()
	}
	if hb.Status == "" {
		hb.Status = "running"
	}

	query := `
		INSERT INTO heartbeats (id, user_id, machine_id, status, version, ip, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, machine_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			version = COALESCE(EXCLUDED.version, heartbeats.version),
			ip = COALESCE(EXCLUDED.ip, heartbeats.ip),
			last_seen = CURRENT_TIMESTAMP
		RETURNING id, paused, last_seen, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		hb.ID, hb.UserID, hb.MachineID, hb.Status, hb.Version, hb.IP,
	).Scan(&hb.ID, &hb.Paused, &hb.LastSeen, &hb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert heartbeat: %w", err)
	}

	return nil
}

// SetHeartbeatPaused flips the remote pause flag for one machine
func (r *Repository) SetHeartbeatPaused(ctx context.Context, id string, paused bool) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE heartbeats SET paused = $2 WHERE id = $1`, id, paused)
	if err != nil {
		return fmt.Errorf("failed to set pause flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("heartbeat not found: %s", id)
	}
	return nil
}

// GetHeartbeat retrieves one heartbeat row by ID. Returns nil when absent.
func (r *Repository) GetHeartbeat(ctx context.Context, id string) (*Heartbeat, error) {
	query := `
		SELECT id, user_id, machine_id, status, version, ip, paused, last_seen, created_at
		FROM heartbeats
		WHERE id = $1
	`

	var hb Heartbeat
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&hb.ID, &hb.UserID, &hb.MachineID, &hb.Status, &hb.Version,
		&hb.IP, &hb.Paused, &hb.LastSeen, &hb.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get heartbeat: %w", err)
	}

	return &hb, nil
}

// ListActiveHeartbeats returns machines seen within the given window
func (r *Repository) ListActiveHeartbeats(ctx context.Context, window time.Duration) ([]HeartbeatWithUser, error) {
	query := `
		SELECT h.id, h.user_id, h.machine_id, h.status, h.version, h.ip,
		       h.paused, h.last_seen, h.created_at, u.email
		FROM heartbeats h
		JOIN users u ON h.user_id = u.id
		WHERE h.last_seen > CURRENT_TIMESTAMP - $1::interval
		ORDER BY h.last_seen DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list active heartbeats: %w", err)
	}
	defer rows.Close()

	return scanHeartbeatsWithUser(rows)
}

// ListHeartbeats returns the most recent heartbeats across the fleet
func (r *Repository) ListHeartbeats(ctx context.Context, limit int) ([]HeartbeatWithUser, error) {
	query := `
		SELECT h.id, h.user_id, h.machine_id, h.status, h.version, h.ip,
		       h.paused, h.last_seen, h.created_at, u.email
		FROM heartbeats h
		JOIN users u ON h.user_id = u.id
		ORDER BY h.last_seen DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list heartbeats: %w", err)
	}
	defer rows.Close()

	return scanHeartbeatsWithUser(rows)
}

func scanHeartbeatsWithUser(rows pgx.Rows) ([]HeartbeatWithUser, error) {
	var heartbeats []HeartbeatWithUser
	for rows.Next() {
		var hb HeartbeatWithUser
		err := rows.Scan(
			&hb.ID, &hb.UserID, &hb.MachineID, &hb.Status, &hb.Version,
			&hb.IP, &hb.Paused, &hb.LastSeen, &hb.CreatedAt, &hb.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan heartbeat: %w", err)
		}
		heartbeats = append(heartbeats, hb)
	}
	return heartbeats, rows.Err()
}
