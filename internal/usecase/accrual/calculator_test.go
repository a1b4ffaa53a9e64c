package accrual

import (
	"testing"
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T, holidays ...string) *Calculator {
	t.Helper()
	cal, err := NewCalendar(time.UTC, holidays)
	require.NoError(t, err)
	return NewCalculator(cal, 5, decimal.NewFromInt(150), 4, decimal.NewFromInt(35))
}

func tieredRule() *freetime.Rule {
	return &freetime.Rule{
		CarrierCode:  "MAEU",
		FreeDays:     5,
		RateDay1To4:  decimal.NewFromInt(100),
		RateDay5To7:  decimal.NewFromInt(150),
		RateDay8Plus: decimal.NewFromInt(200),
	}
}

func TestStatusForPercent(t *testing.T) {
	tests := []struct {
		percent float64
		want    shipment.DemurrageStatus
	}{
		{0, shipment.DemurrageOK},
		{79.99, shipment.DemurrageOK},
		{80, shipment.DemurrageWarning},
		{89.5, shipment.DemurrageWarning},
		{90, shipment.DemurrageCritical},
		{99.99, shipment.DemurrageCritical},
		{100, shipment.DemurrageOverdue},
		{240, shipment.DemurrageOverdue},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForPercent(tt.percent), "percent %v", tt.percent)
	}
}

func TestExpiresAtWithoutExclusions(t *testing.T) {
	calc := newTestCalculator(t)
	out := time.Date(2025, 3, 7, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, out.AddDate(0, 0, 5), calc.ExpiresAt(out, tieredRule()))
}

func TestExpiresAtSkipsWeekends(t *testing.T) {
	calc := newTestCalculator(t)
	rule := tieredRule()
	rule.FreeDays = 2
	rule.ExcludeWeekends = true

	// Friday 08:00: 16h Friday, weekend skipped, 24h Monday, 8h Tuesday.
	out := time.Date(2025, 3, 7, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), calc.ExpiresAt(out, rule))
}

func TestExpiresAtSkipsHolidays(t *testing.T) {
	calc := newTestCalculator(t, "2025-03-03")
	rule := tieredRule()
	rule.FreeDays = 1
	rule.ExcludeHolidays = true

	out := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), calc.ExpiresAt(out, rule))
}

func TestInvalidHoliday(t *testing.T) {
	_, err := NewCalendar(time.UTC, []string{"03/03/2025"})
	require.Error(t, err)
}

func TestTieredCharge(t *testing.T) {
	calc := newTestCalculator(t)
	rule := tieredRule()

	tests := []struct {
		daysOver int
		want     string
	}{
		{0, "0"},
		{1, "100"},
		{4, "400"},
		{5, "550"},
		{7, "850"},
		{9, "1250"},
	}
	for _, tt := range tests {
		assert.True(t, decimal.RequireFromString(tt.want).Equal(calc.TieredCharge(tt.daysOver, rule)),
			"days over %d: got %s", tt.daysOver, calc.TieredCharge(tt.daysOver, rule))
	}
}

func TestEstimateNeverRegressesAsTimeAdvances(t *testing.T) {
	calc := newTestCalculator(t)
	rule := tieredRule()
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	samples := []time.Duration{
		24 * time.Hour,
		96 * time.Hour,
		108 * time.Hour,
		5 * day,
		9 * day,
		12 * day,
	}

	var seen []shipment.DemurrageStatus
	prev := -1
	for _, offset := range samples {
		est := calc.Estimate(out, out.Add(offset), rule)
		require.GreaterOrEqual(t, est.Status.Rank(), prev, "status regressed at +%s", offset)
		if est.Status.Rank() > prev {
			seen = append(seen, est.Status)
		}
		prev = est.Status.Rank()
	}

	assert.Equal(t, []shipment.DemurrageStatus{
		shipment.DemurrageOK,
		shipment.DemurrageWarning,
		shipment.DemurrageCritical,
		shipment.DemurrageOverdue,
	}, seen)

	late := calc.Estimate(out, out.Add(12*day), rule)
	assert.Equal(t, 7, late.DaysOver)
	assert.True(t, decimal.NewFromInt(850).Equal(late.Charge))
}

func TestCloseWithinFreeTime(t *testing.T) {
	calc := newTestCalculator(t)
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	closing := calc.Close(out, out.Add(4*day+3*time.Hour), tieredRule())

	assert.Equal(t, freetime.AccrualClosed, closing.Status)
	assert.Equal(t, 4, closing.DaysUsed)
	assert.Equal(t, 0, closing.DaysOver)
	assert.True(t, closing.TotalCharge.IsZero())
}

func TestCloseAfterExpiryFloorsWholeDays(t *testing.T) {
	calc := newTestCalculator(t)
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	closing := calc.Close(out, out.Add(7*day+23*time.Hour), tieredRule())

	assert.Equal(t, freetime.AccrualCalculated, closing.Status)
	assert.Equal(t, 7, closing.DaysUsed)
	assert.Equal(t, 2, closing.DaysOver)
	assert.True(t, decimal.NewFromInt(200).Equal(closing.TotalCharge))
	assert.Equal(t, shipment.DemurrageOverdue, closing.Demurrage)
}

func TestDefaultRuleIsFlat(t *testing.T) {
	calc := newTestCalculator(t)
	rule := calc.DefaultRule("ZIMU")

	assert.Equal(t, 5, rule.FreeDays)
	assert.True(t, decimal.NewFromInt(150).Equal(rule.RateForOverageDay(1)))
	assert.True(t, decimal.NewFromInt(150).Equal(rule.RateForOverageDay(9)))
}

func TestPerDiem(t *testing.T) {
	calc := newTestCalculator(t)
	picked := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	returned := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)

	pd := calc.PerDiem(&billing.ChassisUsage{PickedUpAt: picked, ReturnedAt: &returned}, returned)
	assert.Equal(t, 7, pd.Days)
	assert.Equal(t, 3, pd.DaysOver)
	assert.True(t, decimal.NewFromInt(105).Equal(pd.Amount))

	free := 10
	pd = calc.PerDiem(&billing.ChassisUsage{PickedUpAt: picked, FreeDays: &free}, returned)
	assert.Equal(t, 0, pd.DaysOver)
	assert.True(t, pd.Amount.IsZero())
}
