package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection pool. The pool is owned by the
// caller and handed to each repository; there is no package-level handle.
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		// Refresh tokens (stored hashed, revoked on rotation)
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash VARCHAR(64) NOT NULL,
			ip VARCHAR(45),
			user_agent TEXT,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_hash ON refresh_tokens(token_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id)`,

		// Licenses (soft-deleted via is_active, never removed)
		`CREATE TABLE IF NOT EXISTS licenses (
			id UUID PRIMARY KEY,
			license_key VARCHAR(19) NOT NULL UNIQUE,
			max_activations INT NOT NULL DEFAULT 1,
			expires_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_key ON licenses(license_key)`,
		`CREATE INDEX IF NOT EXISTS idx_licenses_active ON licenses(is_active)`,

		// Activations: one live row per (license, machine)
		`CREATE TABLE IF NOT EXISTS activations (
			id UUID PRIMARY KEY,
			license_id UUID NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
			machine_id VARCHAR(255) NOT NULL,
			user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			ip VARCHAR(45),
			hostname VARCHAR(255),
			os_info VARCHAR(255),
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_activations_license_machine
			ON activations(license_id, machine_id) WHERE NOT revoked`,
		`CREATE INDEX IF NOT EXISTS idx_activations_license ON activations(license_id)`,

		// Daily activity counters, one row per user per day
		`CREATE TABLE IF NOT EXISTS daily_stats (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			stat_date DATE NOT NULL,
			emails_added INT NOT NULL DEFAULT 0,
			emails_failed INT NOT NULL DEFAULT 0,
			accounts_used INT NOT NULL DEFAULT 0,
			success_rate DECIMAL(5, 2) NOT NULL DEFAULT 0,
			total_time_minutes INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, stat_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_stats_user_date ON daily_stats(user_id, stat_date DESC)`,

		// Weekly rollups, Monday-aligned, materialized from daily_stats
		`CREATE TABLE IF NOT EXISTS weekly_stats (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			week_start DATE NOT NULL,
			week_end DATE NOT NULL,
			emails_added INT NOT NULL DEFAULT 0,
			emails_failed INT NOT NULL DEFAULT 0,
			accounts_used INT NOT NULL DEFAULT 0,
			success_rate DECIMAL(5, 2) NOT NULL DEFAULT 0,
			total_time_minutes INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, week_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_stats_user ON weekly_stats(user_id, week_start DESC)`,

		// Monthly rollups, materialized from daily_stats
		`CREATE TABLE IF NOT EXISTS monthly_stats (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			month INT NOT NULL,
			year INT NOT NULL,
			emails_added INT NOT NULL DEFAULT 0,
			emails_failed INT NOT NULL DEFAULT 0,
			accounts_used INT NOT NULL DEFAULT 0,
			success_rate DECIMAL(5, 2) NOT NULL DEFAULT 0,
			total_time_minutes INT NOT NULL DEFAULT 0,
			peak_day DATE,
			peak_day_count INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, month, year)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_stats_user ON monthly_stats(user_id, year DESC, month DESC)`,

		// Heartbeats, one row per user+machine
		`CREATE TABLE IF NOT EXISTS heartbeats (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			machine_id VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'running',
			version VARCHAR(50),
			ip VARCHAR(45),
			paused BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, machine_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_heartbeats_last_seen ON heartbeats(last_seen DESC)`,

		// Screenshots: metadata only, files live on disk
		`CREATE TABLE IF NOT EXISTS screenshots (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			machine_id VARCHAR(255),
			filename VARCHAR(255) NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			note TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screenshots_user ON screenshots(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_screenshots_created ON screenshots(created_at)`,

		// Per-email event log, the granular source behind daily_stats
		`CREATE TABLE IF NOT EXISTS email_events (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			machine_id VARCHAR(255),
			email VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'success',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_email_events_user ON email_events(user_id, created_at DESC)`,

		// Client work sessions; duration lands in daily_stats on session end
		`CREATE TABLE IF NOT EXISTS activity_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			machine_id VARCHAR(255),
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP,
			duration_minutes INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_sessions_user ON activity_sessions(user_id, started_at DESC)`,

		// Audit log, append only
		`CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY,
			user_id UUID,
			action VARCHAR(100) NOT NULL,
			entity_type VARCHAR(50),
			entity_id VARCHAR(100),
			details JSONB,
			ip VARCHAR(45),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at DESC)`,

		// Admin notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			kind VARCHAR(50) NOT NULL,
			message TEXT NOT NULL,
			entity_type VARCHAR(50),
			entity_id VARCHAR(100),
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read, created_at DESC)`,

		// updated_at trigger
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_users_updated_at ON users`,
		`CREATE TRIGGER update_users_updated_at BEFORE UPDATE ON users
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_licenses_updated_at ON licenses`,
		`CREATE TRIGGER update_licenses_updated_at BEFORE UPDATE ON licenses
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_daily_stats_updated_at ON daily_stats`,
		`CREATE TRIGGER update_daily_stats_updated_at BEFORE UPDATE ON daily_stats
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
