package ingestion

import (
	"encoding/json"
	"strings"
	"time"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/usecase/automation"

	"github.com/google/uuid"
)

// OrderMessage is published by the order service after every committed
// status change or deletion.
type OrderMessage struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Deleted bool   `json:"deleted"`
}

// TripMessage is published by the dispatch service on trip status changes.
type TripMessage struct {
	EventID string `json:"event_id"`
	TripID  string `json:"trip_id"`
	Status  string `json:"status"`
}

// GateMessage is a terminal gate transaction for a container.
type GateMessage struct {
	EventID     string    `json:"event_id"`
	ContainerID string    `json:"container_id"`
	Direction   string    `json:"direction"` // OUT or IN
	Timestamp   time.Time `json:"timestamp"`
}

const (
	GateOut = "OUT"
	GateIn  = "IN"
)

func ParseOrderMessage(payload []byte) (*OrderMessage, error) {
	var msg OrderMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	msg.Status = strings.ToUpper(strings.TrimSpace(msg.Status))
	return &msg, nil
}

func ParseTripMessage(payload []byte) (*TripMessage, error) {
	var msg TripMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	msg.Status = strings.ToUpper(strings.TrimSpace(msg.Status))
	return &msg, nil
}

func ParseGateMessage(payload []byte) (*GateMessage, error) {
	var msg GateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	msg.Direction = strings.ToUpper(strings.TrimSpace(msg.Direction))
	return &msg, nil
}

// eventID returns the parsed id, or uuid.Nil so the engine assigns one.
func eventID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ToMutation converts a validated message into an engine mutation.
func (m *OrderMessage) ToMutation() automation.MutationEvent {
	id := uuid.MustParse(m.OrderID)
	if m.Deleted {
		return automation.MutationEvent{
			Kind:        automation.MutationOrderDelete,
			OrderDelete: &automation.OrderDeleteCommand{OrderID: id, EventID: eventID(m.EventID)},
		}
	}
	return automation.MutationEvent{
		Kind: automation.MutationOrderStatus,
		OrderStatus: &automation.OrderStatusCommand{
			OrderID: id,
			Status:  shipment.OrderStatus(m.Status),
			EventID: eventID(m.EventID),
		},
	}
}

func (m *TripMessage) ToMutation() automation.MutationEvent {
	return automation.MutationEvent{
		Kind: automation.MutationTripStatus,
		TripStatus: &automation.TripStatusCommand{
			TripID:  uuid.MustParse(m.TripID),
			Status:  trip.TripStatus(m.Status),
			EventID: eventID(m.EventID),
		},
	}
}

func (m *GateMessage) ToMutation() automation.MutationEvent {
	kind := automation.MutationGateOut
	if m.Direction == GateIn {
		kind = automation.MutationGateIn
	}
	return automation.MutationEvent{
		Kind: kind,
		Gate: &automation.GateCommand{
			ContainerID: uuid.MustParse(m.ContainerID),
			At:          m.Timestamp,
			EventID:     eventID(m.EventID),
		},
	}
}
