package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeLineModel backs order_charges. idempotency_key is unique among
// non-deleted rows (partial index), so soft-deleted history may repeat it.
type ChargeLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID        *uuid.UUID      `gorm:"type:uuid;index"`
	ContainerID    *uuid.UUID      `gorm:"type:uuid;index"`
	ChargeType     string          `gorm:"type:varchar(32);not null"`
	Description    string          `gorm:"type:text"`
	Quantity       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	UnitRate       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	AutoCalculated bool            `gorm:"not null;default:false"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex:uq_order_charges_key,where:deleted_at IS NULL"`
	SourceEventID  *uuid.UUID      `gorm:"type:uuid"`
	DeletedAt      *time.Time      `gorm:"type:timestamptz"`
	CreatedAt      time.Time       `gorm:"not null"`
}

func (ChargeLineModel) TableName() string {
	return "order_charges"
}

type InvoiceModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InvoiceNumber  string          `gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status         string          `gorm:"type:varchar(16);not null;default:'DRAFT'"`
	Currency       string          `gorm:"type:char(3);not null"`
	IssueDate      time.Time       `gorm:"type:date;not null"`
	DueDate        time.Time       `gorm:"type:date;not null"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AmountPaid     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	BalanceDue     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	SourceEventID  *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

func (InvoiceModel) TableName() string {
	return "invoices"
}

type InvoiceLineItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID        *uuid.UUID      `gorm:"type:uuid;index"`
	OrderNumber    string          `gorm:"type:varchar(32)"`
	ContainerID    *uuid.UUID      `gorm:"type:uuid"`
	ChargeType     string          `gorm:"type:varchar(32);not null"`
	Description    string          `gorm:"type:text"`
	Quantity       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	UnitRate       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt      time.Time       `gorm:"not null"`
}

func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

type LaneRateModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CustomerID       *uuid.UUID       `gorm:"type:uuid;index"`
	ContainerSize    string           `gorm:"type:varchar(8);not null"`
	BaseRate         decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	FuelSurchargePct *decimal.Decimal `gorm:"type:numeric(5,2)"`
	HazmatFee        *decimal.Decimal `gorm:"type:numeric(12,2)"`
	OverweightFee    *decimal.Decimal `gorm:"type:numeric(12,2)"`
	ReeferFee        *decimal.Decimal `gorm:"type:numeric(12,2)"`
	EffectiveDate    time.Time        `gorm:"type:date;not null"`
}

func (LaneRateModel) TableName() string {
	return "lane_rates"
}

type ChassisUsageModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ContainerID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	ChassisNumber string           `gorm:"type:varchar(16);not null"`
	PickedUpAt    time.Time        `gorm:"type:timestamptz;not null"`
	ReturnedAt    *time.Time       `gorm:"type:timestamptz"`
	FreeDays      *int             `gorm:"type:integer"`
	DailyRate     *decimal.Decimal `gorm:"type:numeric(12,2)"`
	Billed        bool             `gorm:"not null;default:false"`
	InvoiceID     *uuid.UUID       `gorm:"type:uuid"`
}

func (ChassisUsageModel) TableName() string {
	return "chassis_usage"
}
