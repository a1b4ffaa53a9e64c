package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outbox stores events in the mutation's transaction until the relay publishes them
type Outbox interface {
	Append(ctx context.Context, events []Event) error
	ListPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
