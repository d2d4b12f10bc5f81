package database

import (
	"time"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account that can log in and report activity
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         string     `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserWithCounts is a user row augmented with per-user totals for the admin list
type UserWithCounts struct {
	User
	EmailsAdded      int64 `json:"emails_added"`
	ScreenshotsCount int64 `json:"screenshots_count"`
}

// RefreshToken is a stored (hashed) refresh token
type RefreshToken struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	IP        string    `json:"ip,omitempty" db:"ip"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// License entitles up to MaxActivations machines, optionally time-bounded.
// Deactivation is a lifecycle state, not a deletion: rows are never removed.
type License struct {
	ID             string     `json:"id" db:"id"`
	LicenseKey     string     `json:"license_key" db:"license_key"`
	MaxActivations int        `json:"max_activations" db:"max_activations"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedBy      *string    `json:"created_by,omitempty" db:"created_by"`
	Notes          string     `json:"notes" db:"notes"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// LicenseWithUsage is a license row augmented for the admin list view
type LicenseWithUsage struct {
	License
	ActiveActivations int     `json:"active_activations"`
	CreatedByEmail    *string `json:"created_by_email,omitempty"`
}

// Activation binds one license to one machine identity. At most one
// non-revoked row exists per (license_id, machine_id); revocation retires
// the row permanently.
type Activation struct {
	ID        string    `json:"id" db:"id"`
	LicenseID string    `json:"license_id" db:"license_id"`
	MachineID string    `json:"machine_id" db:"machine_id"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`
	IP        *string   `json:"ip,omitempty" db:"ip"`
	Hostname  *string   `json:"hostname,omitempty" db:"hostname"`
	OSInfo    *string   `json:"os_info,omitempty" db:"os_info"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DailyStat holds one user's counters for one calendar day
type DailyStat struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	StatDate         time.Time `json:"date" db:"stat_date"`
	EmailsAdded      int       `json:"emails_added" db:"emails_added"`
	EmailsFailed     int       `json:"emails_failed" db:"emails_failed"`
	AccountsUsed     int       `json:"accounts_used" db:"accounts_used"`
	SuccessRate      float64   `json:"success_rate" db:"success_rate"`
	TotalTimeMinutes int       `json:"total_time_minutes" db:"total_time_minutes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// WeeklyStat is the Monday-aligned rollup of daily rows
type WeeklyStat struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	WeekStart        time.Time `json:"week_start" db:"week_start"`
	WeekEnd          time.Time `json:"week_end" db:"week_end"`
	EmailsAdded      int       `json:"emails_added" db:"emails_added"`
	EmailsFailed     int       `json:"emails_failed" db:"emails_failed"`
	AccountsUsed     int       `json:"accounts_used" db:"accounts_used"`
	SuccessRate      float64   `json:"success_rate" db:"success_rate"`
	TotalTimeMinutes int       `json:"total_time_minutes" db:"total_time_minutes"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// MonthlyStat is the calendar-month rollup of daily rows
type MonthlyStat struct {
	ID               string     `json:"id" db:"id"`
	UserID           string     `json:"user_id" db:"user_id"`
	Month            int        `json:"month" db:"month"`
	Year             int        `json:"year" db:"year"`
	EmailsAdded      int        `json:"emails_added" db:"emails_added"`
	EmailsFailed     int        `json:"emails_failed" db:"emails_failed"`
	AccountsUsed     int        `json:"accounts_used" db:"accounts_used"`
	SuccessRate      float64    `json:"success_rate" db:"success_rate"`
	TotalTimeMinutes int        `json:"total_time_minutes" db:"total_time_minutes"`
	PeakDay          *time.Time `json:"peak_day,omitempty" db:"peak_day"`
	PeakDayCount     int        `json:"peak_day_count" db:"peak_day_count"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// PeriodSummary is an ad-hoc aggregate over a window of daily rows
type PeriodSummary struct {
	EmailsAdded      int     `json:"emails_added"`
	EmailsFailed     int     `json:"emails_failed"`
	AccountsUsed     int     `json:"accounts_used"`
	SuccessRate      float64 `json:"success_rate"`
	TotalTimeMinutes int     `json:"total_time_minutes"`
	ActiveDays       int     `json:"active_days"`
}

// Heartbeat is the latest liveness report from one user+machine pair
type Heartbeat struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	MachineID string    `json:"machine_id" db:"machine_id"`
	Status    string    `json:"status" db:"status"`
	Version   *string   `json:"version,omitempty" db:"version"`
	IP        *string   `json:"ip,omitempty" db:"ip"`
	Paused    bool      `json:"paused" db:"paused"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HeartbeatWithUser augments a heartbeat with the owner's email for admin views
type HeartbeatWithUser struct {
	Heartbeat
	UserEmail string `json:"user_email"`
}

// Screenshot is stored metadata for one uploaded image
type Screenshot struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	MachineID *string   `json:"machine_id,omitempty" db:"machine_id"`
	Filename  string    `json:"filename" db:"filename"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	Note      *string   `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EmailEvent is one processed email, the granular log behind daily_stats
type EmailEvent struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	MachineID *string   `json:"machine_id,omitempty" db:"machine_id"`
	Email     string    `json:"email" db:"email"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActivitySession is one client work session; its duration feeds the daily
// time counter when the session ends
type ActivitySession struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	MachineID       *string    `json:"machine_id,omitempty" db:"machine_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationMinutes int        `json:"duration_minutes" db:"duration_minutes"`
}

// AuditEntry is one append-only audit record
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	UserID     *string   `json:"user_id,omitempty" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   string    `json:"entity_id,omitempty" db:"entity_id"`
	Details    []byte    `json:"details,omitempty" db:"details"`
	IP         string    `json:"ip,omitempty" db:"ip"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Notification is an in-app alert for administrators
type Notification struct {
	ID         string    `json:"id" db:"id"`
	Kind       string    `json:"kind" db:"kind"`
	Message    string    `json:"message" db:"message"`
	EntityType *string   `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   *string   `json:"entity_id,omitempty" db:"entity_id"`
	Read       bool      `json:"read" db:"read"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
