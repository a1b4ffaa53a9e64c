package accrual

import (
	"math"
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"

	"github.com/shopspring/decimal"
)

const (
	warningPercent  = 80
	criticalPercent = 90
	overduePercent  = 100
)

// Estimate is the running demurrage position of a container still out.
type Estimate struct {
	ExpiresAt   time.Time
	PercentUsed float64
	Status      shipment.DemurrageStatus
	DaysUsed    int
	DaysOver    int
	Charge      decimal.Decimal
}

// Closing is the final demurrage position once the container is back in.
type Closing struct {
	ExpiresAt   time.Time
	DaysUsed    int
	DaysOver    int
	TotalCharge decimal.Decimal
	Status      freetime.AccrualStatus
	Demurrage   shipment.DemurrageStatus
}

// PerDiem is the rental position of a chassis usage record.
type PerDiem struct {
	Days     int
	DaysOver int
	Rate     decimal.Decimal
	Amount   decimal.Decimal
}

type Calculator struct {
	cal              *Calendar
	defaultFreeDays  int
	defaultDailyRate decimal.Decimal
	perDiemFreeDays  int
	perDiemDailyRate decimal.Decimal
}

func NewCalculator(cal *Calendar, freeDays int, dailyRate decimal.Decimal, perDiemFreeDays int, perDiemRate decimal.Decimal) *Calculator {
	return &Calculator{
		cal:              cal,
		defaultFreeDays:  freeDays,
		defaultDailyRate: dailyRate,
		perDiemFreeDays:  perDiemFreeDays,
		perDiemDailyRate: perDiemRate,
	}
}

// DefaultRule is the flat-rate rule used when a carrier has none on file.
func (c *Calculator) DefaultRule(carrierCode string) *freetime.Rule {
	return &freetime.Rule{
		CarrierCode:  carrierCode,
		FreeDays:     c.defaultFreeDays,
		RateDay1To4:  c.defaultDailyRate,
		RateDay5To7:  c.defaultDailyRate,
		RateDay8Plus: c.defaultDailyRate,
	}
}

func exclusionsOf(rule *freetime.Rule) exclusions {
	return exclusions{weekends: rule.ExcludeWeekends, holidays: rule.ExcludeHolidays}
}

// ExpiresAt is gate-out plus the rule's free days of chargeable time.
func (c *Calculator) ExpiresAt(gateOut time.Time, rule *freetime.Rule) time.Time {
	return c.cal.advance(gateOut, time.Duration(rule.FreeDays)*day, exclusionsOf(rule))
}

// TieredCharge sums the per-day rate of each overage day.
func (c *Calculator) TieredCharge(daysOver int, rule *freetime.Rule) decimal.Decimal {
	total := decimal.Zero
	for n := 1; n <= daysOver; n++ {
		total = total.Add(rule.RateForOverageDay(n))
	}
	return total.Round(2)
}

func (c *Calculator) Estimate(gateOut, now time.Time, rule *freetime.Rule) Estimate {
	ex := exclusionsOf(rule)
	expires := c.ExpiresAt(gateOut, rule)
	used := c.cal.elapsed(gateOut, now, ex)

	var percent float64
	allowance := time.Duration(rule.FreeDays) * day
	switch {
	case allowance > 0:
		percent = float64(used) / float64(allowance) * 100
	case used > 0:
		percent = overduePercent
	}

	daysOver := wholeDays(c.cal.elapsed(expires, now, ex))
	return Estimate{
		ExpiresAt:   expires,
		PercentUsed: math.Round(percent*100) / 100,
		Status:      StatusForPercent(percent),
		DaysUsed:    wholeDays(used),
		DaysOver:    daysOver,
		Charge:      c.TieredCharge(daysOver, rule),
	}
}

func (c *Calculator) Close(gateOut, gateIn time.Time, rule *freetime.Rule) Closing {
	est := c.Estimate(gateOut, gateIn, rule)
	closing := Closing{
		ExpiresAt:   est.ExpiresAt,
		DaysUsed:    est.DaysUsed,
		DaysOver:    est.DaysOver,
		TotalCharge: est.Charge,
		Demurrage:   est.Status,
		Status:      freetime.AccrualCalculated,
	}
	if !gateIn.After(est.ExpiresAt) {
		closing.Status = freetime.AccrualClosed
		closing.DaysOver = 0
		closing.TotalCharge = decimal.Zero
	}
	return closing
}

// PerDiem prices a chassis usage at a flat daily rate past its free days,
// counting to asOf while the chassis is still out.
func (c *Calculator) PerDiem(u *billing.ChassisUsage, asOf time.Time) PerDiem {
	freeDays := c.perDiemFreeDays
	if u.FreeDays != nil {
		freeDays = *u.FreeDays
	}
	rate := c.perDiemDailyRate
	if u.DailyRate != nil {
		rate = *u.DailyRate
	}

	end := asOf
	if u.ReturnedAt != nil {
		end = *u.ReturnedAt
	}

	days := 0
	if end.After(u.PickedUpAt) {
		days = wholeDays(end.Sub(u.PickedUpAt))
	}
	over := days - freeDays
	if over < 0 {
		over = 0
	}
	return PerDiem{
		Days:     days,
		DaysOver: over,
		Rate:     rate,
		Amount:   rate.Mul(decimal.NewFromInt(int64(over))).Round(2),
	}
}

// StatusForPercent applies the free-time thresholds: OK below 80%,
// WARNING below 90%, CRITICAL below 100%, OVERDUE from 100%.
func StatusForPercent(percent float64) shipment.DemurrageStatus {
	switch {
	case percent >= overduePercent:
		return shipment.DemurrageOverdue
	case percent >= criticalPercent:
		return shipment.DemurrageCritical
	case percent >= warningPercent:
		return shipment.DemurrageWarning
	default:
		return shipment.DemurrageOK
	}
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}
