package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeType identifies the kind of a billable charge
type ChargeType string

const (
	ChargeLineHaul          ChargeType = "LINE_HAUL"
	ChargeFuelSurcharge     ChargeType = "FUEL_SURCHARGE"
	ChargeHazmat            ChargeType = "HAZMAT"
	ChargeOverweight        ChargeType = "OVERWEIGHT"
	ChargeReefer            ChargeType = "REEFER"
	ChargeDemurrage         ChargeType = "DEMURRAGE"
	ChargeChassisPerDiem    ChargeType = "CHASSIS_PER_DIEM"
	ChargeAccessorialManual ChargeType = "ACCESSORIAL"
)

// InvoiceStatus tracks payment state of an invoice
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "DRAFT"
	InvoiceSent    InvoiceStatus = "SENT"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// ChargeLine is a priced charge owned by an order or a container.
// At most one non-deleted line of a given type exists per order.
type ChargeLine struct {
	ID             uuid.UUID
	OrderID        *uuid.UUID
	ContainerID    *uuid.UUID
	ChargeType     ChargeType
	Description    string
	Quantity       decimal.Decimal
	UnitRate       decimal.Decimal
	Amount         decimal.Decimal
	AutoCalculated bool
	IdempotencyKey string
	SourceEventID  *uuid.UUID
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

// Invoice groups the billed lines of one order for a customer
type Invoice struct {
	ID             uuid.UUID
	InvoiceNumber  string
	CustomerID     uuid.UUID
	OrderID        uuid.UUID
	Status         InvoiceStatus
	Currency       string
	IssueDate      time.Time
	DueDate        time.Time
	Subtotal       decimal.Decimal
	TotalAmount    decimal.Decimal
	AmountPaid     decimal.Decimal
	BalanceDue     decimal.Decimal
	IdempotencyKey string
	SourceEventID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvoiceLineItem is a single billed charge on an invoice
type InvoiceLineItem struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	OrderID        *uuid.UUID
	OrderNumber    string
	ContainerID    *uuid.UUID
	ChargeType     ChargeType
	Description    string
	Quantity       decimal.Decimal
	UnitRate       decimal.Decimal
	Amount         decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
}

// LaneRate is the base line-haul price for a customer and container size.
// A nil CustomerID marks the global default for that size.
type LaneRate struct {
	ID               uuid.UUID
	CustomerID       *uuid.UUID
	ContainerSize    string
	BaseRate         decimal.Decimal
	FuelSurchargePct *decimal.Decimal
	HazmatFee        *decimal.Decimal
	OverweightFee    *decimal.Decimal
	ReeferFee        *decimal.Decimal
	EffectiveDate    time.Time
}

// ChassisUsage records chassis rental for a container move
type ChassisUsage struct {
	ID            uuid.UUID
	ContainerID   uuid.UUID
	ChassisNumber string
	PickedUpAt    time.Time
	ReturnedAt    *time.Time
	FreeDays      *int
	DailyRate     *decimal.Decimal
	Billed        bool
	InvoiceID     *uuid.UUID
}
