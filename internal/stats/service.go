package stats

import (
	"context"
	"fmt"
	"time"

	"emailbot-backend/internal/database"

	"github.com/rs/zerolog"
)

// Default and maximum row counts for exports
const (
	DefaultDailyExportLimit = 30
	MaxDailyExportLimit     = 100
	WeeklyExportLimit       = 52
	MonthlyExportLimit      = 12
)

// StatsError is a typed stats engine error
type StatsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e StatsError) Error() string {
	return e.Message
}

var (
	ErrInvalidPeriod   = StatsError{Code: "INVALID_PERIOD", Message: "period must be daily, weekly or monthly"}
	ErrInvalidDate     = StatsError{Code: "INVALID_DATE", Message: "date must be formatted as YYYY-MM-DD"}
	ErrSessionNotFound = StatsError{Code: "SESSION_NOT_FOUND", Message: "session not found"}
)

// Store is the persistence surface the stat aggregator needs.
// *database.Repository satisfies it.
type Store interface {
	IncrementDailyStat(ctx context.Context, userID string, date time.Time, success bool) (*database.DailyStat, error)
	UpsertDailyStat(ctx context.Context, stat *database.DailyStat) error
	GetDailyStat(ctx context.Context, userID string, date time.Time) (*database.DailyStat, error)
	ListDailyStats(ctx context.Context, userID string, limit int) ([]database.DailyStat, error)
	AggregateDailyRange(ctx context.Context, userID string, from, to time.Time) (*database.PeriodSummary, error)
	GetPeakDay(ctx context.Context, userID string, from, to time.Time) (*time.Time, int, error)
	AllTimeSummary(ctx context.Context, userID string) (*database.PeriodSummary, error)
	UpsertWeeklyStat(ctx context.Context, stat *database.WeeklyStat) error
	ListWeeklyStats(ctx context.Context, userID string, limit int) ([]database.WeeklyStat, error)
	UpsertMonthlyStat(ctx context.Context, stat *database.MonthlyStat) error
	ListMonthlyStats(ctx context.Context, userID string, limit int) ([]database.MonthlyStat, error)
	CreateActivitySession(ctx context.Context, session *database.ActivitySession) error
	GetActivitySession(ctx context.Context, id string) (*database.ActivitySession, error)
	CloseActivitySession(ctx context.Context, id string, endedAt time.Time, minutes int) (bool, error)
	AddDailyTime(ctx context.Context, userID string, date time.Time, minutes int) error
}

// UpdateDailyRequest carries absolute counter values for one day
type UpdateDailyRequest struct {
	Date             string `json:"date" binding:"required"`
	EmailsAdded      int    `json:"emails_added" binding:"min=0"`
	EmailsFailed     int    `json:"emails_failed" binding:"min=0"`
	AccountsUsed     int    `json:"accounts_used" binding:"min=0"`
	TotalTimeMinutes int    `json:"total_time_minutes" binding:"min=0"`
}

// Summary aggregates a user's activity over the standard reporting windows
type Summary struct {
	Today     *database.DailyStat     `json:"today"`
	Week      *database.PeriodSummary `json:"week"`
	Month     *database.PeriodSummary `json:"month"`
	AllTime   *database.PeriodSummary `json:"all_time"`
	Generated time.Time               `json:"generated_at"`
}

// Service implements activity tracking and period rollups
type Service struct {
	repo   Store
	logger zerolog.Logger
}

// NewService creates a new stats service
func NewService(repo Store, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// LogEmailActivity records one processed email for today and refreshes the
// affected weekly and monthly rollups
func (s *Service) LogEmailActivity(ctx context.Context, userID string, success bool) (*database.DailyStat, error) {
	today := DateOnly(time.Now().UTC())

	stat, err := s.repo.IncrementDailyStat(ctx, userID, today, success)
	if err != nil {
		return nil, err
	}

	s.recomputeRollups(ctx, userID, today)

	return stat, nil
}

// UpdateDailyStats writes absolute counters for one user/day and refreshes
// the affected rollups. Admin correction path.
func (s *Service) UpdateDailyStats(ctx context.Context, userID string, req UpdateDailyRequest) (*database.DailyStat, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	stat := &database.DailyStat{
		UserID:           userID,
		StatDate:         date,
		EmailsAdded:      req.EmailsAdded,
		EmailsFailed:     req.EmailsFailed,
		AccountsUsed:     req.AccountsUsed,
		TotalTimeMinutes: req.TotalTimeMinutes,
	}
	if err := s.repo.UpsertDailyStat(ctx, stat); err != nil {
		return nil, err
	}

	s.recomputeRollups(ctx, userID, date)

	return stat, nil
}

// recomputeRollups refreshes the weekly and monthly rows touched by a daily
// change. Rollups are derived data; failures are logged, not surfaced.
func (s *Service) recomputeRollups(ctx context.Context, userID string, date time.Time) {
	if err := s.RecomputeWeekly(ctx, userID, date); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("weekly rollup failed")
	}
	if err := s.RecomputeMonthly(ctx, userID, date); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("monthly rollup failed")
	}
}

// RecomputeWeekly rebuilds the weekly rollup for the week containing date.
// A week with no daily rows is left unmaterialized.
func (s *Service) RecomputeWeekly(ctx context.Context, userID string, date time.Time) error {
	weekStart, weekEnd := WeekBounds(date)

	summary, err := s.repo.AggregateDailyRange(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}

	return s.repo.UpsertWeeklyStat(ctx, &database.WeeklyStat{
		UserID:           userID,
		WeekStart:        weekStart,
		WeekEnd:          weekEnd,
		EmailsAdded:      summary.EmailsAdded,
		EmailsFailed:     summary.EmailsFailed,
		AccountsUsed:     summary.AccountsUsed,
		SuccessRate:      summary.SuccessRate,
		TotalTimeMinutes: summary.TotalTimeMinutes,
	})
}

// RecomputeMonthly rebuilds the monthly rollup for the month containing date
func (s *Service) RecomputeMonthly(ctx context.Context, userID string, date time.Time) error {
	monthStart, monthEnd := MonthBounds(date)

	summary, err := s.repo.AggregateDailyRange(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}

	peakDay, peakCount, err := s.repo.GetPeakDay(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return err
	}

	return s.repo.UpsertMonthlyStat(ctx, &database.MonthlyStat{
		UserID:           userID,
		Month:            int(monthStart.Month()),
		Year:             monthStart.Year(),
		EmailsAdded:      summary.EmailsAdded,
		EmailsFailed:     summary.EmailsFailed,
		AccountsUsed:     summary.AccountsUsed,
		SuccessRate:      summary.SuccessRate,
		TotalTimeMinutes: summary.TotalTimeMinutes,
		PeakDay:          peakDay,
		PeakDayCount:     peakCount,
	})
}

// GetSummary builds the dashboard summary: today, the trailing seven days,
// the current calendar month and all time
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	now := time.Now().UTC()
	today := DateOnly(now)

	todayStat, err := s.repo.GetDailyStat(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	week, err := s.repo.AggregateDailyRange(ctx, userID, today.AddDate(0, 0, -6), today)
	if err != nil {
		return nil, err
	}

	monthStart, monthEnd := MonthBounds(now)
	month, err := s.repo.AggregateDailyRange(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	allTime, err := s.repo.AllTimeSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Absent rows surface as zeroed windows, never null
	if todayStat == nil {
		todayStat = &database.DailyStat{UserID: userID, StatDate: today}
	}
	if week == nil {
		week = &database.PeriodSummary{}
	}
	if month == nil {
		month = &database.PeriodSummary{}
	}

	return &Summary{
		Today:     todayStat,
		Week:      week,
		Month:     month,
		AllTime:   allTime,
		Generated: now,
	}, nil
}

// StartSession opens a work session for a user
func (s *Service) StartSession(ctx context.Context, userID, machineID string) (*database.ActivitySession, error) {
	session := &database.ActivitySession{UserID: userID}
	if machineID != "" {
		session.MachineID = &machineID
	}

	if err := s.repo.CreateActivitySession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// EndSession closes a work session and credits its minutes to today's time
// counter. Ending an already-closed session returns it unchanged.
func (s *Service) EndSession(ctx context.Context, userID, sessionID string) (*database.ActivitySession, error) {
	session, err := s.repo.GetActivitySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if session.EndedAt != nil {
		return session, nil
	}

	ended := time.Now().UTC()
	minutes := int(ended.Sub(session.StartedAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	closed, err := s.repo.CloseActivitySession(ctx, sessionID, ended, minutes)
	if err != nil {
		return nil, err
	}
	if !closed {
		// Lost the race against another end call; report the stored state
		return s.repo.GetActivitySession(ctx, sessionID)
	}

	session.EndedAt = &ended
	session.DurationMinutes = minutes

	today := DateOnly(ended)
	if err := s.repo.AddDailyTime(ctx, userID, today, minutes); err != nil {
		return nil, err
	}
	s.recomputeRollups(ctx, userID, today)

	return session, nil
}

// ListDaily returns up to limit daily rows, newest first, with the limit
// clamped to the export cap
func (s *Service) ListDaily(ctx context.Context, userID string, limit int) ([]database.DailyStat, error) {
	if limit <= 0 {
		limit = DefaultDailyExportLimit
	}
	if limit > MaxDailyExportLimit {
		limit = MaxDailyExportLimit
	}
	return s.repo.ListDailyStats(ctx, userID, limit)
}

// ListWeekly returns the materialized weekly rollups, newest first
func (s *Service) ListWeekly(ctx context.Context, userID string) ([]database.WeeklyStat, error) {
	return s.repo.ListWeeklyStats(ctx, userID, WeeklyExportLimit)
}

// ListMonthly returns the materialized monthly rollups, newest first
func (s *Service) ListMonthly(ctx context.Context, userID string) ([]database.MonthlyStat, error) {
	return s.repo.ListMonthlyStats(ctx, userID, MonthlyExportLimit)
}

// Export writes a user's stats for the given period as CSV
func (s *Service) Export(ctx context.Context, userID, period string, limit int) ([]byte, string, error) {
	switch period {
	case "daily":
		rows, err := s.ListDaily(ctx, userID, limit)
		if err != nil {
			return nil, "", err
		}
		data, err := WriteDailyCSV(rows)
		return data, fmt.Sprintf("daily_stats_%s.csv", time.Now().UTC().Format("2006-01-02")), err
	case "weekly":
		rows, err := s.ListWeekly(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		data, err := WriteWeeklyCSV(rows)
		return data, fmt.Sprintf("weekly_stats_%s.csv", time.Now().UTC().Format("2006-01-02")), err
	case "monthly":
		rows, err := s.ListMonthly(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		data, err := WriteMonthlyCSV(rows)
		return data, fmt.Sprintf("monthly_stats_%s.csv", time.Now().UTC().Format("2006-01-02")), err
	default:
		return nil, "", ErrInvalidPeriod
	}
}
