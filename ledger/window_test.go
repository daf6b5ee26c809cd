package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow_InclusiveCalendarDays(t *testing.T) {
	loc := time.FixedZone("AST", -4*60*60)
	w, err := ParseWindow("2026-03-01", "2026-03-31", loc)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"first instant", time.Date(2026, 3, 1, 0, 0, 0, 0, loc), true},
		{"last millisecond", time.Date(2026, 3, 31, 23, 59, 59, int(999*time.Millisecond), loc), true},
		{"past the last millisecond", time.Date(2026, 3, 31, 23, 59, 59, 999_500_000, loc), true},
		{"next day", time.Date(2026, 4, 1, 0, 0, 0, 0, loc), false},
		{"day before", time.Date(2026, 2, 28, 23, 59, 59, 0, loc), false},
		// 02:00 UTC on April 1 is still March 31 in AST
		{"UTC timestamp converted", time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC), true},
		{"UTC timestamp before start", time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
}

func TestParseWindow_SingleDay(t *testing.T) {
	w, err := ParseWindow("2026-03-10", "2026-03-10", time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestParseWindow_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
	}{
		{"missing from", "", "2026-03-31"},
		{"missing to", "2026-03-01", ""},
		{"wrong layout", "03/01/2026", "2026-03-31"},
		{"impossible date", "2026-02-30", "2026-03-31"},
		{"reversed", "2026-03-31", "2026-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWindow(tt.from, tt.to, time.UTC)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestMonthWindow(t *testing.T) {
	w := MonthWindow(2024, time.February, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, 29, w.To.Day())
	assert.True(t, w.Contains(time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
