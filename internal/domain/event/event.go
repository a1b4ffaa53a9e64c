package event

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names the kind of row an event is about
type EntityType string

const (
	EntityShipment   EntityType = "SHIPMENT"
	EntityContainer  EntityType = "CONTAINER"
	EntityOrder      EntityType = "ORDER"
	EntityTrip       EntityType = "TRIP"
	EntityChargeLine EntityType = "CHARGE_LINE"
	EntityInvoice    EntityType = "INVOICE"
	EntitySettlement EntityType = "SETTLEMENT"
)

// Action describes what happened to the entity
type Action string

const (
	ActionCreated       Action = "CREATED"
	ActionUpdated       Action = "UPDATED"
	ActionStatusChanged Action = "STATUS_CHANGED"
	ActionDeleted       Action = "DELETED"
)

// Event is the per-mutation notification re-published onto the message bus.
// Seq is assigned by the outbox on append and orders events that share an
// OccurredAt, which every event of one mutation does.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Seq         int64      `json:"seq,omitempty"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    uuid.UUID  `json:"entity_id"`
	Action      Action     `json:"action"`
	NewStatus   string     `json:"new_status,omitempty"`
	CausedBy    *uuid.UUID `json:"caused_by,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
	PublishedAt *time.Time `json:"-"`
}

// New builds an event stamped with a fresh id.
func New(entityType EntityType, entityID uuid.UUID, action Action, newStatus string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		NewStatus:  newStatus,
		OccurredAt: at,
	}
}
