package stats

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"emailbot-backend/internal/database"
)

// Column headers match the spreadsheets admins already import
var (
	dailyHeader   = []string{"Date", "Emails Added", "Emails Failed", "Accounts Used", "Success Rate %", "Time (min)"}
	weeklyHeader  = []string{"Week Start", "Week End", "Emails Added", "Emails Failed", "Accounts Used", "Avg Success Rate %", "Time (min)"}
	monthlyHeader = []string{"Month", "Year", "Emails Added", "Emails Failed", "Accounts Used", "Avg Success Rate %", "Time (min)", "Peak Day", "Peak Count"}
)

// WriteDailyCSV renders daily rows as CSV
func WriteDailyCSV(rows []database.DailyStat) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(dailyHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.StatDate.Format("2006-01-02"),
			strconv.Itoa(r.EmailsAdded),
			strconv.Itoa(r.EmailsFailed),
			strconv.Itoa(r.AccountsUsed),
			formatRate(r.SuccessRate),
			strconv.Itoa(r.TotalTimeMinutes),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// WriteWeeklyCSV renders weekly rollups as CSV
func WriteWeeklyCSV(rows []database.WeeklyStat) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(weeklyHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.WeekStart.Format("2006-01-02"),
			r.WeekEnd.Format("2006-01-02"),
			strconv.Itoa(r.EmailsAdded),
			strconv.Itoa(r.EmailsFailed),
			strconv.Itoa(r.AccountsUsed),
			formatRate(r.SuccessRate),
			strconv.Itoa(r.TotalTimeMinutes),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// WriteMonthlyCSV renders monthly rollups as CSV
func WriteMonthlyCSV(rows []database.MonthlyStat) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(monthlyHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		peakDay := ""
		if r.PeakDay != nil {
			peakDay = r.PeakDay.Format("2006-01-02")
		}

		record := []string{
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.EmailsAdded),
			strconv.Itoa(r.EmailsFailed),
			strconv.Itoa(r.AccountsUsed),
			formatRate(r.SuccessRate),
			strconv.Itoa(r.TotalTimeMinutes),
			peakDay,
			strconv.Itoa(r.PeakDayCount),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64)
}
