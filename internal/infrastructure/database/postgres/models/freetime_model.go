package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FreeTimeRuleModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CarrierCode     string          `gorm:"type:varchar(16);not null;uniqueIndex"`
	FreeDays        int             `gorm:"not null"`
	RateDay1To4     decimal.Decimal `gorm:"column:rate_day_1_to_4;type:numeric(12,2);not null"`
	RateDay5To7     decimal.Decimal `gorm:"column:rate_day_5_to_7;type:numeric(12,2);not null"`
	RateDay8Plus    decimal.Decimal `gorm:"column:rate_day_8_plus;type:numeric(12,2);not null"`
	ExcludeWeekends bool            `gorm:"not null;default:false"`
	ExcludeHolidays bool            `gorm:"not null;default:false"`
}

func (FreeTimeRuleModel) TableName() string {
	return "free_time_rules"
}

type DemurrageAccrualModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ContainerID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CarrierCode       string          `gorm:"type:varchar(16)"`
	FreeDays          int             `gorm:"not null"`
	FreeTimeStart     time.Time       `gorm:"type:timestamptz;not null"`
	FreeTimeExpiresAt time.Time       `gorm:"type:timestamptz;not null"`
	GateInAt          *time.Time      `gorm:"type:timestamptz"`
	DaysUsed          int             `gorm:"not null;default:0"`
	DaysOver          int             `gorm:"not null;default:0"`
	TotalCharge       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Status            string          `gorm:"type:varchar(16);not null"`
	InvoiceID         *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

func (DemurrageAccrualModel) TableName() string {
	return "demurrage_accruals"
}
