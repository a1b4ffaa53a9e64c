package automation

import (
	"time"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"

	"github.com/google/uuid"
)

// Command DTOs. EventID identifies the triggering mutation; it is recorded on
// every artifact and event the command produces. A zero EventID is replaced
// by a fresh one.

type OrderStatusCommand struct {
	OrderID uuid.UUID            `json:"order_id" validate:"required"`
	Status  shipment.OrderStatus `json:"status" validate:"required,oneof=PENDING READY DISPATCHED IN_PROGRESS DELIVERED COMPLETED HOLD CANCELLED FAILED INVOICED"`
	EventID uuid.UUID            `json:"event_id"`
}

type OrderDeleteCommand struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	EventID uuid.UUID `json:"event_id"`
}

type TripStatusCommand struct {
	TripID  uuid.UUID       `json:"trip_id" validate:"required"`
	Status  trip.TripStatus `json:"status" validate:"required,oneof=PLANNED ASSIGNED DISPATCHED EN_ROUTE IN_PROGRESS COMPLETED CANCELLED FAILED"`
	EventID uuid.UUID       `json:"event_id"`
}

type GateCommand struct {
	ContainerID uuid.UUID `json:"container_id" validate:"required"`
	At          time.Time `json:"at" validate:"required"`
	EventID     uuid.UUID `json:"event_id"`
}

// MutationKind names a mutation delivered by a collaborating service
type MutationKind string

const (
	MutationOrderStatus MutationKind = "order.status_changed"
	MutationOrderDelete MutationKind = "order.deleted"
	MutationTripStatus  MutationKind = "trip.status_changed"
	MutationGateOut     MutationKind = "container.gate_out"
	MutationGateIn      MutationKind = "container.gate_in"
)

// MutationEvent is a bus-delivered mutation; exactly one payload matches Kind.
type MutationEvent struct {
	Kind        MutationKind        `json:"kind" validate:"required"`
	OrderStatus *OrderStatusCommand `json:"order_status,omitempty"`
	OrderDelete *OrderDeleteCommand `json:"order_delete,omitempty"`
	TripStatus  *TripStatusCommand  `json:"trip_status,omitempty"`
	Gate        *GateCommand        `json:"gate,omitempty"`
}
