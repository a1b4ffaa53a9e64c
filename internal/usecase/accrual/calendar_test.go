package accrual

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeableDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	c, err := NewCalendar(ny, []string{"2025-07-04", "2025-12-27"})
	require.NoError(t, err)

	both := exclusions{weekends: true, holidays: true}
	weekends := exclusions{weekends: true}
	holidays := exclusions{holidays: true}

	tests := []struct {
		name string
		at   time.Time
		ex   exclusions
		want bool
	}{
		{"weekday", time.Date(2025, 7, 3, 15, 0, 0, 0, time.UTC), both, true},
		{"holiday in local time", time.Date(2025, 7, 5, 2, 0, 0, 0, time.UTC), both, false},
		{"holiday over once local day ends", time.Date(2025, 7, 5, 5, 0, 0, 0, time.UTC), holidays, true},
		{"holiday counts when only weekends excluded", time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC), weekends, true},
		{"saturday", time.Date(2025, 7, 5, 15, 0, 0, 0, time.UTC), weekends, false},
		{"saturday counts when only holidays excluded", time.Date(2025, 7, 5, 15, 0, 0, 0, time.UTC), holidays, true},
		{"holiday on a saturday", time.Date(2025, 12, 27, 15, 0, 0, 0, time.UTC), holidays, false},
		{"holiday date is bound to its year", time.Date(2026, 7, 4, 15, 0, 0, 0, time.UTC), holidays, true},
		{"nothing excluded", time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC), exclusions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.chargeable(tt.at, tt.ex))
		})
	}
}

func TestElapsedCountsPartialDays(t *testing.T) {
	c, err := NewCalendar(time.UTC, []string{"2025-03-10"})
	require.NoError(t, err)

	// Friday 18:00 to Tuesday 06:00: 6h Friday, weekend and Monday holiday skipped, 6h Tuesday.
	from := time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)

	assert.Equal(t, 12*time.Hour, c.elapsed(from, to, exclusions{weekends: true, holidays: true}))
	assert.Equal(t, 60*time.Hour, c.elapsed(from, to, exclusions{holidays: true}))
	assert.Equal(t, to.Sub(from), c.elapsed(from, to, exclusions{}))
	assert.Equal(t, to, c.advance(from, 12*time.Hour, exclusions{weekends: true, holidays: true}))
}
