package trip

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripStatus represents the dispatch state of a trip
type TripStatus string

const (
	StatusPlanned    TripStatus = "PLANNED"
	StatusAssigned   TripStatus = "ASSIGNED"
	StatusDispatched TripStatus = "DISPATCHED"
	StatusEnRoute    TripStatus = "EN_ROUTE"
	StatusInProgress TripStatus = "IN_PROGRESS"
	StatusCompleted  TripStatus = "COMPLETED"
	StatusCancelled  TripStatus = "CANCELLED"
	StatusFailed     TripStatus = "FAILED"
)

// IsValid reports whether s is a known trip status.
func (s TripStatus) IsValid() bool {
	switch s {
	case StatusPlanned, StatusAssigned, StatusDispatched, StatusEnRoute,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Trip is a driver's run carrying one or more orders
type Trip struct {
	ID          uuid.UUID
	TripNumber  string
	DriverID    *uuid.UUID
	Status      TripStatus
	Revenue     decimal.Decimal
	Cost        decimal.Decimal
	TotalMiles  decimal.Decimal
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stop is a pickup or delivery location on a trip
type Stop struct {
	ID               uuid.UUID
	TripID           uuid.UUID
	Sequence         int
	StopType         string
	ArrivedAt        *time.Time
	DepartedAt       *time.Time
	DetentionMinutes int
}
