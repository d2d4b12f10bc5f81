package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateLicense inserts a new license row
func (r *Repository) CreateLicense(ctx context.Context, license *License) error {
	if license.ID == "" {
		license.ID = uuid.New().String()
	}

	query := `
		INSERT INTO licenses (id, license_key, max_activations, expires_at, is_active, created_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		license.ID, license.LicenseKey, license.MaxActivations,
		license.ExpiresAt, license.IsActive, license.CreatedBy, license.Notes,
	).Scan(&license.CreatedAt, &license.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create license: %w", err)
	}

	return nil
}

// GetLicenseByKey retrieves a license by key regardless of lifecycle state.
// Returns nil when not found.
func (r *Repository) GetLicenseByKey(ctx context.Context, key string) (*License, error) {
	query := `
		SELECT id, license_key, max_activations, expires_at, is_active,
		       created_by, notes, created_at, updated_at
		FROM licenses
		WHERE license_key = $1
	`
	return r.scanLicenseRow(r.db.Pool.QueryRow(ctx, query, key))
}

// GetActiveLicenseByKey retrieves a license by key, active rows only.
// Returns nil when not found.
func (r *Repository) GetActiveLicenseByKey(ctx context.Context, key string) (*License, error) {
	query := `
		SELECT id, license_key, max_activations, expires_at, is_active,
		       created_by, notes, created_at, updated_at
		FROM licenses
		WHERE license_key = $1 AND is_active
	`
	return r.scanLicenseRow(r.db.Pool.QueryRow(ctx, query, key))
}

// GetLicenseByID retrieves a license by ID. Returns nil when not found.
func (r *Repository) GetLicenseByID(ctx context.Context, id string) (*License, error) {
	query := `
		SELECT id, license_key, max_activations, expires_at, is_active,
		       created_by, notes, created_at, updated_at
		FROM licenses
		WHERE id = $1
	`
	return r.scanLicenseRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanLicenseRow(row pgx.Row) (*License, error) {
	var l License
	err := row.Scan(
		&l.ID, &l.LicenseKey, &l.MaxActivations, &l.ExpiresAt, &l.IsActive,
		&l.CreatedBy, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}
	return &l, nil
}

// ListLicenses returns all licenses with their live activation counts and
// creator emails, newest first
func (r *Repository) ListLicenses(ctx context.Context) ([]LicenseWithUsage, error) {
	query := `
		SELECT l.id, l.license_key, l.max_activations, l.expires_at, l.is_active,
		       l.created_by, l.notes, l.created_at, l.updated_at,
		       COUNT(a.id) FILTER (WHERE NOT a.revoked) AS active_activations,
		       u.email AS created_by_email
		FROM licenses l
		LEFT JOIN activations a ON l.id = a.license_id
		LEFT JOIN users u ON l.created_by = u.id
		GROUP BY l.id, u.email
		ORDER BY l.created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []LicenseWithUsage
	for rows.Next() {
		var l LicenseWithUsage
		err := rows.Scan(
			&l.ID, &l.LicenseKey, &l.MaxActivations, &l.ExpiresAt, &l.IsActive,
			&l.CreatedBy, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
			&l.ActiveActivations, &l.CreatedByEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, l)
	}

	return licenses, rows.Err()
}

// UpdateLicenseInput holds the optional fields of a license update.
// Only non-nil fields are applied.
type UpdateLicenseInput struct {
	MaxActivations *int
	ExpiresAt      **time.Time // outer nil = untouched, inner nil = clear expiry
	IsActive       *bool
	Notes          *string
}

// IsEmpty reports whether no field is set
func (i UpdateLicenseInput) IsEmpty() bool {
	return i.MaxActivations == nil && i.ExpiresAt == nil && i.IsActive == nil && i.Notes == nil
}

// UpdateLicense applies a partial update to a license row
func (r *Repository) UpdateLicense(ctx context.Context, id string, input UpdateLicenseInput) error {
	setClauses := []string{}
	args := []interface{}{}
	argNum := 1

	if input.MaxActivations != nil {
		setClauses = append(setClauses, fmt.Sprintf("max_activations = $%d", argNum))
		args = append(args, *input.MaxActivations)
		argNum++
	}
	if input.ExpiresAt != nil {
		setClauses = append(setClauses, fmt.Sprintf("expires_at = $%d", argNum))
		args = append(args, *input.ExpiresAt)
		argNum++
	}
	if input.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argNum))
		args = append(args, *input.IsActive)
		argNum++
	}
	if input.Notes != nil {
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", argNum))
		args = append(args, *input.Notes)
		argNum++
	}

	if len(setClauses) == 0 {
		return fmt.Errorf("no fields to update")
	}

	query := "UPDATE licenses SET "
	for i, clause := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += fmt.Sprintf(" WHERE id = $%d", argNum)
	args = append(args, id)

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update license: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("license not found: %s", id)
	}

	return nil
}

// DeactivateLicense soft-deletes a license. Activation rows are untouched;
// validation fails afterwards via the is_active check on the parent.
func (r *Repository) DeactivateLicense(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE licenses SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate license: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("license not found: %s", id)
	}
	return nil
}

// GetActivation retrieves the non-revoked activation for a (license, machine)
// pair. Returns nil when no live activation exists.
func (r *Repository) GetActivation(ctx context.Context, licenseID, machineID string) (*Activation, error) {
	query := `
		SELECT id, license_id, machine_id, user_id, ip, hostname, os_info,
		       revoked, last_seen, created_at
		FROM activations
		WHERE license_id = $1 AND machine_id = $2 AND NOT revoked
	`

	var a Activation
	err := r.db.Pool.QueryRow(ctx, query, licenseID, machineID).Scan(
		&a.ID, &a.LicenseID, &a.MachineID, &a.UserID, &a.IP, &a.Hostname,
		&a.OSInfo, &a.Revoked, &a.LastSeen, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}

	return &a, nil
}

// GetActivationByID retrieves one activation row. Returns nil when absent.
func (r *Repository) GetActivationByID(ctx context.Context, id string) (*Activation, error) {
	query := `
		SELECT id, license_id, machine_id, user_id, ip, hostname, os_info,
		       revoked, last_seen, created_at
		FROM activations
		WHERE id = $1
	`

	var a Activation
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.LicenseID, &a.MachineID, &a.UserID, &a.IP, &a.Hostname,
		&a.OSInfo, &a.Revoked, &a.LastSeen, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}

	return &a, nil
}

// CountActivations counts the non-revoked activations of a license
func (r *Repository) CountActivations(ctx context.Context, licenseID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activations WHERE license_id = $1 AND NOT revoked`,
		licenseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activations: %w", err)
	}
	return count, nil
}

// CreateActivation inserts a new activation row. The partial unique index on
// (license_id, machine_id) WHERE NOT revoked rejects a concurrent duplicate.
func (r *Repository) CreateActivation(ctx context.Context, activation *Activation) error {
	if activation.ID == "" {
		activation.ID = uuid.New().String()
	}

	query := `
		INSERT INTO activations (id, license_id, machine_id, user_id, ip, hostname, os_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING last_seen, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		activation.ID, activation.LicenseID, activation.MachineID,
		activation.UserID, activation.IP, activation.Hostname, activation.OSInfo,
	).Scan(&activation.LastSeen, &activation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activation: %w", err)
	}

	return nil
}

// TouchActivation refreshes an activation after a repeat activate call
func (r *Repository) TouchActivation(ctx context.Context, id string, ip *string, userID *string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE activations
		SET last_seen = CURRENT_TIMESTAMP, ip = COALESCE($2, ip), user_id = COALESCE($3, user_id)
		WHERE id = $1
	`, id, ip, userID)
	if err != nil {
		return fmt.Errorf("failed to touch activation: %w", err)
	}
	return nil
}

// RefreshActivationLastSeen stamps last_seen after a successful validation
// and returns the new timestamp
func (r *Repository) RefreshActivationLastSeen(ctx context.Context, id string) (time.Time, error) {
	var lastSeen time.Time
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE activations SET last_seen = CURRENT_TIMESTAMP WHERE id = $1 RETURNING last_seen`, id,
	).Scan(&lastSeen)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to refresh activation: %w", err)
	}
	return lastSeen, nil
}

// RevokeActivation permanently retires one activation row
func (r *Repository) RevokeActivation(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE activations SET revoked = TRUE WHERE id = $1 AND NOT revoked`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke activation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("activation not found: %s", id)
	}
	return nil
}

// ListActivations returns all activations of a license, newest first
func (r *Repository) ListActivations(ctx context.Context, licenseID string) ([]Activation, error) {
	query := `
		SELECT id, license_id, machine_id, user_id, ip, hostname, os_info,
		       revoked, last_seen, created_at
		FROM activations
		WHERE license_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	var activations []Activation
	for rows.Next() {
		var a Activation
		err := rows.Scan(
			&a.ID, &a.LicenseID, &a.MachineID, &a.UserID, &a.IP, &a.Hostname,
			&a.OSInfo, &a.Revoked, &a.LastSeen, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		activations = append(activations, a)
	}

	return activations, rows.Err()
}
