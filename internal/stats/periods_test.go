package stats

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		name      string
		input     time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "monday maps to itself",
			input:     date(2025, time.June, 2),
			wantStart: date(2025, time.June, 2),
			wantEnd:   date(2025, time.June, 8),
		},
		{
			name:      "midweek",
			input:     date(2025, time.June, 4),
			wantStart: date(2025, time.June, 2),
			wantEnd:   date(2025, time.June, 8),
		},
		{
			name:      "sunday belongs to the preceding monday",
			input:     date(2025, time.June, 8),
			wantStart: date(2025, time.June, 2),
			wantEnd:   date(2025, time.June, 8),
		},
		{
			name:      "week spanning a month boundary",
			input:     date(2025, time.July, 1),
			wantStart: date(2025, time.June, 30),
			wantEnd:   date(2025, time.July, 6),
		},
		{
			name:      "week spanning a year boundary",
			input:     date(2026, time.January, 1),
			wantStart: date(2025, time.December, 29),
			wantEnd:   date(2026, time.January, 4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := WeekBounds(tt.input)
			if !start.Equal(tt.wantStart) {
				t.Errorf("WeekBounds(%v) start = %v, want %v", tt.input, start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("WeekBounds(%v) end = %v, want %v", tt.input, end, tt.wantEnd)
			}
			if start.Weekday() != time.Monday {
				t.Errorf("week start %v is not a Monday", start)
			}
			if end.Weekday() != time.Sunday {
				t.Errorf("week end %v is not a Sunday", end)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name      string
		input     time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"31-day month", date(2025, time.January, 15), date(2025, time.January, 1), date(2025, time.January, 31)},
		{"30-day month", date(2025, time.April, 30), date(2025, time.April, 1), date(2025, time.April, 30)},
		{"february non-leap", date(2025, time.February, 1), date(2025, time.February, 1), date(2025, time.February, 28)},
		{"february leap year", date(2024, time.February, 29), date(2024, time.February, 1), date(2024, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := MonthBounds(tt.input)
			if !start.Equal(tt.wantStart) {
				t.Errorf("MonthBounds(%v) start = %v, want %v", tt.input, start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("MonthBounds(%v) end = %v, want %v", tt.input, end, tt.wantEnd)
			}
		})
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2025, time.March, 7, 23, 59, 59, 123, time.UTC)
	got := DateOnly(in)
	want := date(2025, time.March, 7)
	if !got.Equal(want) {
		t.Errorf("DateOnly(%v) = %v, want %v", in, got, want)
	}
}
