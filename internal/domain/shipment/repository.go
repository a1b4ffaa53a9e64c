package shipment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the engine's view of the shipment/container/order hierarchy.
// Methods suffixed ForUpdate take a row-level exclusive lock inside the current transaction.
type Repository interface {
	GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error)
	GetShipmentForUpdate(ctx context.Context, id uuid.UUID) (*Shipment, error)
	AggregateShipment(ctx context.Context, shipmentID uuid.UUID) (*ShipmentCounts, error)
	UpdateShipmentAggregates(ctx context.Context, s *Shipment) error

	GetContainer(ctx context.Context, id uuid.UUID) (*Container, error)
	GetContainerForUpdate(ctx context.Context, id uuid.UUID) (*Container, error)
	AggregateContainerOrders(ctx context.Context, containerID uuid.UUID) (*OrderCounts, error)
	UpdateContainerLifecycle(ctx context.Context, id uuid.UUID, status LifecycleStatus) error
	// UpdateContainerFreeTime writes gate/free-time fields if the stored version still matches.
	// It returns ErrVersionConflict when it does not, and bumps Version on success.
	UpdateContainerFreeTime(ctx context.Context, c *Container, expectedVersion int) error
	ListOpenContainers(ctx context.Context, afterID uuid.UUID, limit int) ([]*Container, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByContainer(ctx context.Context, containerID uuid.UUID) ([]*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error
	UpdateOrderTotalCharges(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	SoftDeleteOrder(ctx context.Context, id uuid.UUID, at time.Time) error
}
