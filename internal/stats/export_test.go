package stats

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"testing"
	"time"

	"emailbot-backend/internal/database"
)

func TestWriteDailyCSV(t *testing.T) {
	rows := []database.DailyStat{
		{
			StatDate:         date(2025, time.June, 2),
			EmailsAdded:      80,
			EmailsFailed:     20,
			AccountsUsed:     4,
			SuccessRate:      80,
			TotalTimeMinutes: 95,
		},
		{
			StatDate: date(2025, time.June, 1),
		},
	}

	data, err := WriteDailyCSV(rows)
	if err != nil {
		t.Fatalf("WriteDailyCSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}

	wantHeader := []string{"Date", "Emails Added", "Emails Failed", "Accounts Used", "Success Rate %", "Time (min)"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Errorf("header = %v, want %v", records[0], wantHeader)
	}

	wantRow := []string{"2025-06-02", "80", "20", "4", "80.00", "95"}
	if !reflect.DeepEqual(records[1], wantRow) {
		t.Errorf("row = %v, want %v", records[1], wantRow)
	}

	wantZero := []string{"2025-06-01", "0", "0", "0", "0.00", "0"}
	if !reflect.DeepEqual(records[2], wantZero) {
		t.Errorf("zero row = %v, want %v", records[2], wantZero)
	}
}

func TestWriteWeeklyCSV(t *testing.T) {
	rows := []database.WeeklyStat{
		{
			WeekStart:        date(2025, time.June, 2),
			WeekEnd:          date(2025, time.June, 8),
			EmailsAdded:      500,
			EmailsFailed:     50,
			AccountsUsed:     6,
			SuccessRate:      90.909,
			TotalTimeMinutes: 600,
		},
	}

	data, err := WriteWeeklyCSV(rows)
	if err != nil {
		t.Fatalf("WriteWeeklyCSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}

	wantHeader := []string{"Week Start", "Week End", "Emails Added", "Emails Failed", "Accounts Used", "Avg Success Rate %", "Time (min)"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Errorf("header = %v, want %v", records[0], wantHeader)
	}

	wantRow := []string{"2025-06-02", "2025-06-08", "500", "50", "6", "90.91", "600"}
	if !reflect.DeepEqual(records[1], wantRow) {
		t.Errorf("row = %v, want %v", records[1], wantRow)
	}
}

func TestWriteMonthlyCSV(t *testing.T) {
	peak := date(2025, time.June, 17)
	rows := []database.MonthlyStat{
		{
			Month:            6,
			Year:             2025,
			EmailsAdded:      2000,
			EmailsFailed:     100,
			AccountsUsed:     8,
			SuccessRate:      95.238,
			TotalTimeMinutes: 2400,
			PeakDay:          &peak,
			PeakDayCount:     180,
		},
		{
			Month: 5,
			Year:  2025,
		},
	}

	data, err := WriteMonthlyCSV(rows)
	if err != nil {
		t.Fatalf("WriteMonthlyCSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}

	wantHeader := []string{"Month", "Year", "Emails Added", "Emails Failed", "Accounts Used", "Avg Success Rate %", "Time (min)", "Peak Day", "Peak Count"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Errorf("header = %v, want %v", records[0], wantHeader)
	}

	wantRow := []string{"6", "2025", "2000", "100", "8", "95.24", "2400", "2025-06-17", "180"}
	if !reflect.DeepEqual(records[1], wantRow) {
		t.Errorf("row = %v, want %v", records[1], wantRow)
	}

	// A month with no peak day leaves the column empty
	if records[2][7] != "" {
		t.Errorf("peak day for empty month = %q, want empty", records[2][7])
	}
}
