package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DriverSettlementModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DriverID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_driver_period"`
	PeriodStart   time.Time       `gorm:"type:date;not null;uniqueIndex:uq_driver_period"`
	PeriodEnd     time.Time       `gorm:"type:date;not null"`
	Status        string          `gorm:"type:varchar(16);not null;default:'DRAFT'"`
	GrossEarnings decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Deductions    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	NetPay        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalMiles    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	TotalTrips    int             `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (DriverSettlementModel) TableName() string {
	return "driver_settlements"
}

type SettlementLineItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SettlementID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	TripID         *uuid.UUID      `gorm:"type:uuid;index"`
	Kind           string          `gorm:"column:line_type;type:varchar(16);not null"`
	Description    string          `gorm:"type:text"`
	Quantity       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Rate           decimal.Decimal `gorm:"type:numeric(12,4);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Miles          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	IdempotencyKey string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	SourceEventID  *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt      time.Time       `gorm:"not null"`
}

func (SettlementLineItemModel) TableName() string {
	return "settlement_line_items"
}

type DriverPayRateModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DriverID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	PayMethod          string          `gorm:"type:varchar(16);not null"`
	Rate               decimal.Decimal `gorm:"type:numeric(12,4);not null"`
	WaitingRatePerHour decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	FreeWaitingMinutes int             `gorm:"not null;default:0"`
	EffectiveDate      time.Time       `gorm:"type:date;not null"`
}

func (DriverPayRateModel) TableName() string {
	return "driver_pay_rates"
}
