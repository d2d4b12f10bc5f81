package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"emailbot-backend/internal/database"

	"github.com/rs/zerolog"
)

// memStore keeps daily rows and sessions in memory and aggregates ranges the
// way the SQL layer does: counters are summed, the success rate is averaged
// across the days in range.
type memStore struct {
	daily    map[string]*database.DailyStat
	weekly   map[string]*database.WeeklyStat
	monthly  map[string]*database.MonthlyStat
	sessions map[string]*database.ActivitySession
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		daily:    make(map[string]*database.DailyStat),
		weekly:   make(map[string]*database.WeeklyStat),
		monthly:  make(map[string]*database.MonthlyStat),
		sessions: make(map[string]*database.ActivitySession),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func dailyKey(userID string, date time.Time) string {
	return userID + "/" + date.Format("2006-01-02")
}

func (m *memStore) IncrementDailyStat(_ context.Context, userID string, date time.Time, success bool) (*database.DailyStat, error) {
	key := dailyKey(userID, date)
	stat, ok := m.daily[key]
	if !ok {
		stat = &database.DailyStat{ID: m.id(), UserID: userID, StatDate: date}
		m.daily[key] = stat
	}
	if success {
		stat.EmailsAdded++
	} else {
		stat.EmailsFailed++
	}
	if total := stat.EmailsAdded + stat.EmailsFailed; total > 0 {
		stat.SuccessRate = float64(stat.EmailsAdded) / float64(total) * 100
	}
	copied := *stat
	return &copied, nil
}

func (m *memStore) UpsertDailyStat(_ context.Context, stat *database.DailyStat) error {
	if total := stat.EmailsAdded + stat.EmailsFailed; total > 0 {
		stat.SuccessRate = float64(stat.EmailsAdded) / float64(total) * 100
	} else {
		stat.SuccessRate = 0
	}
	stored := *stat
	m.daily[dailyKey(stat.UserID, stat.StatDate)] = &stored
	return nil
}

func (m *memStore) GetDailyStat(_ context.Context, userID string, date time.Time) (*database.DailyStat, error) {
	stat, ok := m.daily[dailyKey(userID, date)]
	if !ok {
		return nil, nil
	}
	copied := *stat
	return &copied, nil
}

func (m *memStore) ListDailyStats(_ context.Context, userID string, limit int) ([]database.DailyStat, error) {
	var out []database.DailyStat
	for _, stat := range m.daily {
		if stat.UserID == userID && len(out) < limit {
			out = append(out, *stat)
		}
	}
	return out, nil
}

func (m *memStore) inRange(userID string, from, to time.Time) []*database.DailyStat {
	var rows []*database.DailyStat
	for _, stat := range m.daily {
		if stat.UserID == userID && !stat.StatDate.Before(from) && !stat.StatDate.After(to) {
			rows = append(rows, stat)
		}
	}
	return rows
}

func (m *memStore) AggregateDailyRange(_ context.Context, userID string, from, to time.Time) (*database.PeriodSummary, error) {
	rows := m.inRange(userID, from, to)
	if len(rows) == 0 {
		return nil, nil
	}

	summary := &database.PeriodSummary{ActiveDays: len(rows)}
	for _, r := range rows {
		summary.EmailsAdded += r.EmailsAdded
		summary.EmailsFailed += r.EmailsFailed
		summary.AccountsUsed += r.AccountsUsed
		summary.SuccessRate += r.SuccessRate
		summary.TotalTimeMinutes += r.TotalTimeMinutes
	}
	summary.SuccessRate /= float64(len(rows))
	return summary, nil
}

func (m *memStore) GetPeakDay(_ context.Context, userID string, from, to time.Time) (*time.Time, int, error) {
	var peak *time.Time
	count := 0
	for _, r := range m.inRange(userID, from, to) {
		if r.EmailsAdded > count {
			day := r.StatDate
			peak = &day
			count = r.EmailsAdded
		}
	}
	return peak, count, nil
}

func (m *memStore) AllTimeSummary(_ context.Context, userID string) (*database.PeriodSummary, error) {
	summary, err := m.AggregateDailyRange(context.Background(), userID,
		time.Time{}, time.Now().AddDate(100, 0, 0))
	if err != nil || summary == nil {
		return &database.PeriodSummary{}, err
	}
	return summary, nil
}

func (m *memStore) UpsertWeeklyStat(_ context.Context, stat *database.WeeklyStat) error {
	stored := *stat
	m.weekly[stat.UserID+"/"+stat.WeekStart.Format("2006-01-02")] = &stored
	return nil
}

func (m *memStore) ListWeeklyStats(_ context.Context, userID string, limit int) ([]database.WeeklyStat, error) {
	var out []database.WeeklyStat
	for _, stat := range m.weekly {
		if stat.UserID == userID && len(out) < limit {
			out = append(out, *stat)
		}
	}
	return out, nil
}

func (m *memStore) UpsertMonthlyStat(_ context.Context, stat *database.MonthlyStat) error {
	stored := *stat
	m.monthly[fmt.Sprintf("%s/%d-%d", stat.UserID, stat.Year, stat.Month)] = &stored
	return nil
}

func (m *memStore) ListMonthlyStats(_ context.Context, userID string, limit int) ([]database.MonthlyStat, error) {
	var out []database.MonthlyStat
	for _, stat := range m.monthly {
		if stat.UserID == userID && len(out) < limit {
			out = append(out, *stat)
		}
	}
	return out, nil
}

func (m *memStore) CreateActivitySession(_ context.Context, session *database.ActivitySession) error {
	if session.ID == "" {
		session.ID = m.id()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

func (m *memStore) GetActivitySession(_ context.Context, id string) (*database.ActivitySession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *memStore) CloseActivitySession(_ context.Context, id string, endedAt time.Time, minutes int) (bool, error) {
	session, ok := m.sessions[id]
	if !ok || session.EndedAt != nil {
		return false, nil
	}
	session.EndedAt = &endedAt
	session.DurationMinutes = minutes
	return true, nil
}

func (m *memStore) AddDailyTime(_ context.Context, userID string, date time.Time, minutes int) error {
	key := dailyKey(userID, date)
	stat, ok := m.daily[key]
	if !ok {
		stat = &database.DailyStat{ID: m.id(), UserID: userID, StatDate: date}
		m.daily[key] = stat
	}
	stat.TotalTimeMinutes += minutes
	return nil
}

func newTestService(store *memStore) *Service {
	return NewService(store, zerolog.Nop())
}

func seedDay(t *testing.T, store *memStore, userID string, date time.Time, added, failed, accounts int) {
	t.Helper()
	err := store.UpsertDailyStat(context.Background(), &database.DailyStat{
		UserID:       userID,
		StatDate:     date,
		EmailsAdded:  added,
		EmailsFailed: failed,
		AccountsUsed: accounts,
	})
	if err != nil {
		t.Fatalf("UpsertDailyStat() error = %v", err)
	}
}

func TestRecomputeWeeklyAveragesDailyRates(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	// Monday: one of one succeeded. Tuesday: one of a hundred did.
	monday := date(2025, time.June, 2)
	seedDay(t, store, "user-1", monday, 1, 0, 2)
	seedDay(t, store, "user-1", monday.AddDate(0, 0, 1), 1, 99, 3)

	if err := svc.RecomputeWeekly(context.Background(), "user-1", monday); err != nil {
		t.Fatalf("RecomputeWeekly() error = %v", err)
	}

	rows, err := svc.ListWeekly(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListWeekly() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("weekly rows = %d, want 1", len(rows))
	}

	week := rows[0]
	// The rate is the mean of the daily rates (100 and 1), not a rate
	// recomputed from the summed counters
	if week.SuccessRate != 50.5 {
		t.Errorf("weekly success rate = %v, want 50.5", week.SuccessRate)
	}
	if week.AccountsUsed != 5 {
		t.Errorf("weekly accounts used = %d, want 5", week.AccountsUsed)
	}
	if week.EmailsAdded != 2 || week.EmailsFailed != 99 {
		t.Errorf("weekly counters = %d/%d, want 2/99", week.EmailsAdded, week.EmailsFailed)
	}
}

func TestRecomputeMonthlyCarriesAggregatesAndPeak(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	first := date(2025, time.June, 1)
	seedDay(t, store, "user-1", first, 40, 10, 2)
	seedDay(t, store, "user-1", date(2025, time.June, 15), 90, 10, 4)

	if err := svc.RecomputeMonthly(context.Background(), "user-1", first); err != nil {
		t.Fatalf("RecomputeMonthly() error = %v", err)
	}

	rows, err := svc.ListMonthly(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListMonthly() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("monthly rows = %d, want 1", len(rows))
	}

	month := rows[0]
	if month.EmailsAdded != 130 {
		t.Errorf("monthly emails added = %d, want 130", month.EmailsAdded)
	}
	if month.AccountsUsed != 6 {
		t.Errorf("monthly accounts used = %d, want 6", month.AccountsUsed)
	}
	// Daily rates are 80 and 90
	if month.SuccessRate != 85 {
		t.Errorf("monthly success rate = %v, want 85", month.SuccessRate)
	}
	if month.PeakDay == nil || !month.PeakDay.Equal(date(2025, time.June, 15)) {
		t.Errorf("monthly peak day = %v, want 2025-06-15", month.PeakDay)
	}
	if month.PeakDayCount != 90 {
		t.Errorf("monthly peak count = %d, want 90", month.PeakDayCount)
	}
}

func TestLogEmailActivityTracksSuccessRate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	var stat *database.DailyStat
	var err error
	for _, success := range []bool{true, true, true, false} {
		stat, err = svc.LogEmailActivity(context.Background(), "user-1", success)
		if err != nil {
			t.Fatalf("LogEmailActivity() error = %v", err)
		}
	}

	if stat.EmailsAdded != 3 || stat.EmailsFailed != 1 {
		t.Fatalf("counters = %d/%d, want 3/1", stat.EmailsAdded, stat.EmailsFailed)
	}
	if stat.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", stat.SuccessRate)
	}

	// The weekly rollup follows the daily change
	rows, err := svc.ListWeekly(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListWeekly() error = %v", err)
	}
	if len(rows) != 1 || rows[0].SuccessRate != 75 {
		t.Errorf("weekly rollup = %+v, want one row at rate 75", rows)
	}
}

func TestGetSummaryZeroesEmptyWindows(t *testing.T) {
	svc := newTestService(newMemStore())

	summary, err := svc.GetSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}

	if summary.Today == nil || summary.Today.EmailsAdded != 0 {
		t.Errorf("today = %+v, want zeroed row", summary.Today)
	}
	if summary.Week == nil || summary.Month == nil || summary.AllTime == nil {
		t.Error("summary windows must never be null")
	}
}

func TestEndSessionCreditsMinutes(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	session, err := svc.StartSession(context.Background(), "user-1", "machine-1")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	// Backdate the start so the session has measurable length
	store.sessions[session.ID].StartedAt = time.Now().UTC().Add(-30 * time.Minute)

	ended, err := svc.EndSession(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("EndSession() left ended_at unset")
	}
	if ended.DurationMinutes < 29 || ended.DurationMinutes > 31 {
		t.Errorf("duration = %d, want about 30", ended.DurationMinutes)
	}

	today, err := store.GetDailyStat(context.Background(), "user-1", DateOnly(time.Now().UTC()))
	if err != nil {
		t.Fatalf("GetDailyStat() error = %v", err)
	}
	if today == nil || today.TotalTimeMinutes != ended.DurationMinutes {
		t.Errorf("daily time = %+v, want %d minutes", today, ended.DurationMinutes)
	}
}

func TestEndSessionTwiceDoesNotDoubleCount(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	session, err := svc.StartSession(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	store.sessions[session.ID].StartedAt = time.Now().UTC().Add(-10 * time.Minute)

	first, err := svc.EndSession(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	second, err := svc.EndSession(context.Background(), "user-1", session.ID)
	if err != nil {
		t.Fatalf("repeat EndSession() error = %v", err)
	}
	if second.DurationMinutes != first.DurationMinutes {
		t.Errorf("repeat duration = %d, want %d", second.DurationMinutes, first.DurationMinutes)
	}

	today, err := store.GetDailyStat(context.Background(), "user-1", DateOnly(time.Now().UTC()))
	if err != nil {
		t.Fatalf("GetDailyStat() error = %v", err)
	}
	if today.TotalTimeMinutes != first.DurationMinutes {
		t.Errorf("daily time = %d, want %d (credited once)", today.TotalTimeMinutes, first.DurationMinutes)
	}
}

func TestEndSessionRejectsWrongUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	session, err := svc.StartSession(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	_, err = svc.EndSession(context.Background(), "user-2", session.ID)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("EndSession() error = %v, want %v", err, ErrSessionNotFound)
	}

	_, err = svc.EndSession(context.Background(), "user-1", "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("EndSession() unknown id error = %v, want %v", err, ErrSessionNotFound)
	}
}
