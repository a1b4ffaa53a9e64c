package ingestion

import (
	"fmt"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"

	"github.com/google/uuid"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

func requireUUID(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	if _, err := uuid.Parse(value); err != nil {
		return &ValidationError{Field: field, Message: field + " must be valid UUID"}
	}
	return nil
}

func optionalUUID(field, value string) error {
	if value == "" {
		return nil
	}
	return requireUUID(field, value)
}

func ValidateOrderMessage(msg *OrderMessage) error {
	if err := requireUUID("order_id", msg.OrderID); err != nil {
		return err
	}
	if err := optionalUUID("event_id", msg.EventID); err != nil {
		return err
	}
	if msg.Deleted {
		return nil
	}
	if !shipment.OrderStatus(msg.Status).IsValid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", msg.Status)}
	}
	return nil
}

func ValidateTripMessage(msg *TripMessage) error {
	if err := requireUUID("trip_id", msg.TripID); err != nil {
		return err
	}
	if err := optionalUUID("event_id", msg.EventID); err != nil {
		return err
	}
	if !trip.TripStatus(msg.Status).IsValid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown trip status %q", msg.Status)}
	}
	return nil
}

func ValidateGateMessage(msg *GateMessage) error {
	if err := requireUUID("container_id", msg.ContainerID); err != nil {
		return err
	}
	if err := optionalUUID("event_id", msg.EventID); err != nil {
		return err
	}
	if msg.Direction != GateOut && msg.Direction != GateIn {
		return &ValidationError{Field: "direction", Message: "direction must be OUT or IN"}
	}
	if msg.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp is required"}
	}
	return nil
}
