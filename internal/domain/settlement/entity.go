package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the approval state of a settlement period
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusApproved Status = "APPROVED"
	StatusPaid     Status = "PAID"
)

// PayMethod selects how base pay is computed from a trip
type PayMethod string

const (
	PayFlat       PayMethod = "FLAT"
	PayPerMile    PayMethod = "PER_MILE"
	PayPercentage PayMethod = "PERCENTAGE"
)

// LineKind separates earnings from deductions on a settlement
type LineKind string

const (
	LineBasePay    LineKind = "BASE_PAY"
	LineWaitingPay LineKind = "WAITING_PAY"
	LineDeduction  LineKind = "DEDUCTION"
)

// IsEarning reports whether a line of this kind adds to gross earnings.
func (k LineKind) IsEarning() bool {
	return k != LineDeduction
}

// DriverSettlement is a driver's pay statement for one weekly period
type DriverSettlement struct {
	ID            uuid.UUID
	DriverID      uuid.UUID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Status        Status
	GrossEarnings decimal.Decimal
	Deductions    decimal.Decimal
	NetPay        decimal.Decimal
	TotalMiles    decimal.Decimal
	TotalTrips    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one pay component or deduction on a settlement
type LineItem struct {
	ID             uuid.UUID
	SettlementID   uuid.UUID
	TripID         *uuid.UUID
	Kind           LineKind
	Description    string
	Quantity       decimal.Decimal
	Rate           decimal.Decimal
	Amount         decimal.Decimal
	Miles          decimal.Decimal
	IdempotencyKey string
	SourceEventID  *uuid.UUID
	CreatedAt      time.Time
}

// PayRate is a driver's compensation record effective from a date
type PayRate struct {
	ID                 uuid.UUID
	DriverID           uuid.UUID
	PayMethod          PayMethod
	Rate               decimal.Decimal
	WaitingRatePerHour decimal.Decimal
	FreeWaitingMinutes int
	EffectiveDate      time.Time
}
