package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TripModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TripNumber  string          `gorm:"type:varchar(32);not null;uniqueIndex"`
	DriverID    *uuid.UUID      `gorm:"type:uuid;index"`
	Status      string          `gorm:"type:varchar(16);not null;default:'PLANNED'"`
	Revenue     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Cost        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalMiles  decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	CompletedAt *time.Time      `gorm:"type:timestamptz"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (TripModel) TableName() string {
	return "trips"
}

type StopModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TripID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	Sequence         int        `gorm:"not null"`
	StopType         string     `gorm:"type:varchar(16);not null"`
	ArrivedAt        *time.Time `gorm:"type:timestamptz"`
	DepartedAt       *time.Time `gorm:"type:timestamptz"`
	DetentionMinutes int        `gorm:"not null;default:0"`
}

func (StopModel) TableName() string {
	return "trip_stops"
}
