package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists driver settlements and reads pay-rate reference data
type Repository interface {
	FindActivePayRate(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*PayRate, error)

	// FindSettlementForUpdate locks the driver's period starting at periodStart, or returns ErrSettlementNotFound.
	FindSettlementForUpdate(ctx context.Context, driverID uuid.UUID, periodStart time.Time) (*DriverSettlement, error)
	FindCurrentSettlement(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*DriverSettlement, error)
	CreateSettlement(ctx context.Context, s *DriverSettlement) error
	UpdateSettlementTotals(ctx context.Context, s *DriverSettlement) error

	HasLineItemsForTrip(ctx context.Context, tripID uuid.UUID) (bool, error)
	CreateLineItems(ctx context.Context, items []*LineItem) error
	ListLineItems(ctx context.Context, settlementID uuid.UUID) ([]*LineItem, error)
}
