package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateUser inserts a new user row
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	query := `
		INSERT INTO users (id, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Role, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID. Returns nil when not found.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, is_active, last_login, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email. Returns nil when not found.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, is_active, last_login, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *Repository) scanUserRow(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// EmailExists checks whether an email is already registered
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// UpdateUserLastLogin stamps the user's last login time
func (r *Repository) UpdateUserLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateUserInput holds the optional fields of a user update.
// Only non-nil fields are applied.
type UpdateUserInput struct {
	Role         *string
	IsActive     *bool
	PasswordHash *string
}

// UpdateUser applies a partial update to a user row
func (r *Repository) UpdateUser(ctx context.Context, id string, input UpdateUserInput) error {
	setClauses := []string{}
	args := []interface{}{}
	argNum := 1

	if input.Role != nil {
		setClauses = append(setClauses, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *input.Role)
		argNum++
	}
	if input.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argNum))
		args = append(args, *input.IsActive)
		argNum++
	}
	if input.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argNum))
		args = append(args, *input.PasswordHash)
		argNum++
	}

	if len(setClauses) == 0 {
		return fmt.Errorf("no fields to update")
	}

	query := "UPDATE users SET "
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
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}

	return nil
}

// DeactivateUser soft-deletes a user. The row is kept for the audit trail.
func (r *Repository) DeactivateUser(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// ListUsers returns all users with their lifetime activity counts,
// newest first
func (r *Repository) ListUsers(ctx context.Context) ([]UserWithCounts, error) {
	// Subqueries rather than joins: joining both tables at once would fan
	// out the rows and inflate the email sum
	query := `
		SELECT u.id, u.email, u.password_hash, u.role, u.is_active,
		       u.last_login, u.created_at, u.updated_at,
		       COALESCE((SELECT SUM(d.emails_added) FROM daily_stats d WHERE d.user_id = u.id), 0) AS emails_added,
		       (SELECT COUNT(*) FROM screenshots s WHERE s.user_id = u.id) AS screenshots_count
		FROM users u
		ORDER BY u.created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []UserWithCounts
	for rows.Next() {
		var u UserWithCounts
		err := rows.Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
			&u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
			&u.EmailsAdded, &u.ScreenshotsCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// CreateRefreshToken stores a hashed refresh token
func (r *Repository) CreateRefreshToken(ctx context.Context, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, ip, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.IP, token.UserAgent, token.ExpiresAt,
	).Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken looks up a live refresh token by hash. Returns nil when
// absent, revoked or expired.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, COALESCE(ip, ''), COALESCE(user_agent, ''),
		       revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND NOT revoked AND expires_at > CURRENT_TIMESTAMP
	`

	var t RefreshToken
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.IP, &t.UserAgent,
		&t.Revoked, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &t, nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every live token for a user
func (r *Repository) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes tokens past their expiry
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
