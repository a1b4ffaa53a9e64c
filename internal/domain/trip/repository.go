package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository provides the trip rows the settlement calculator reacts to
type Repository interface {
	GetTrip(ctx context.Context, id uuid.UUID) (*Trip, error)
	GetTripForUpdate(ctx context.Context, id uuid.UUID) (*Trip, error)
	UpdateTripStatus(ctx context.Context, id uuid.UUID, status TripStatus, completedAt *time.Time) error
	ListStops(ctx context.Context, tripID uuid.UUID) ([]*Stop, error)
}
