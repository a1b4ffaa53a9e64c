package freetime

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccrualStatus is the billing state of a container's demurrage accrual
type AccrualStatus string

const (
	AccrualOpen       AccrualStatus = "OPEN"       // container still out, estimate only
	AccrualClosed     AccrualStatus = "CLOSED"     // returned within free time
	AccrualCalculated AccrualStatus = "CALCULATED" // returned late, final and billable
	AccrualBilled     AccrualStatus = "BILLED"
)

// Rule is a carrier's free-time allowance and escalating daily rates
type Rule struct {
	ID              uuid.UUID
	CarrierCode     string
	FreeDays        int
	RateDay1To4     decimal.Decimal
	RateDay5To7     decimal.Decimal
	RateDay8Plus    decimal.Decimal
	ExcludeWeekends bool
	ExcludeHolidays bool
}

// RateForOverageDay returns the daily rate for the n-th day past free time (1-based).
func (r *Rule) RateForOverageDay(n int) decimal.Decimal {
	switch {
	case n <= 4:
		return r.RateDay1To4
	case n <= 7:
		return r.RateDay5To7
	default:
		return r.RateDay8Plus
	}
}

// Accrual is the demurrage record for one container's free-time window
type Accrual struct {
	ID                uuid.UUID
	ContainerID       uuid.UUID
	CarrierCode       string
	FreeDays          int
	FreeTimeStart     time.Time
	FreeTimeExpiresAt time.Time
	GateInAt          *time.Time
	DaysUsed          int
	DaysOver          int
	TotalCharge       decimal.Decimal
	Status            AccrualStatus
	InvoiceID         *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Billable reports whether the accrual is final, positive and not yet invoiced.
func (a *Accrual) Billable() bool {
	return a.Status == AccrualCalculated && a.TotalCharge.IsPositive()
}
