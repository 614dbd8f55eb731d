package ruleset

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestDurationToPgInterval(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected pgtype.Interval
	}{
		{
			name:     "zero",
			duration: 0,
			expected: pgtype.Interval{Valid: true},
		},
		{
			name:     "one minute",
			duration: time.Minute,
			expected: pgtype.Interval{Microseconds: 60_000_000, Valid: true},
		},
		{
			name:     "three minutes",
			duration: 3 * time.Minute,
			expected: pgtype.Interval{Microseconds: 180_000_000, Valid: true},
		},
		{
			name:     "one day",
			duration: 24 * time.Hour,
			expected: pgtype.Interval{Days: 1, Valid: true},
		},
		{
			name:     "one day plus one second",
			duration: 24*time.Hour + time.Second,
			expected: pgtype.Interval{Microseconds: 1_000_000, Days: 1, Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := durationToPgInterval(tt.duration); got != tt.expected {
				t.Errorf("durationToPgInterval() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPgIntervalToDuration(t *testing.T) {
	tests := []struct {
		name        string
		interval    pgtype.Interval
		expected    time.Duration
		expectError bool
	}{
		{
			name:     "microseconds only",
			interval: pgtype.Interval{Microseconds: 60_000_000, Valid: true},
			expected: time.Minute,
		},
		{
			name:     "days and microseconds",
			interval: pgtype.Interval{Microseconds: 1_000_000, Days: 1, Valid: true},
			expected: 24*time.Hour + time.Second,
		},
		{
			name:        "months are rejected",
			interval:    pgtype.Interval{Months: 1, Valid: true},
			expectError: true,
		},
		{
			name:        "null interval",
			interval:    pgtype.Interval{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pgIntervalToDuration(tt.interval)
			if (err != nil) != tt.expectError {
				t.Fatalf("pgIntervalToDuration() error = %v, expectError %v", err, tt.expectError)
			}
			if got != tt.expected {
				t.Errorf("pgIntervalToDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second, time.Minute, 3 * time.Minute, time.Hour, 25*time.Hour + time.Minute} {
		got, err := pgIntervalToDuration(durationToPgInterval(d))
		if err != nil {
			t.Fatalf("round trip %v: %v", d, err)
		}
		if got != d {
			t.Errorf("round trip %v: got %v", d, got)
		}
	}
}
