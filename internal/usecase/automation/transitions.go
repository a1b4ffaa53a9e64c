package automation

import (
	"fmt"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	appErrors "drayage-tms/pkg/errors"
)

// State machine for order status transitions
var orderTransitions = map[shipment.OrderStatus][]shipment.OrderStatus{
	shipment.OrderPending: {
		shipment.OrderReady,
		shipment.OrderDispatched,
		shipment.OrderHold,
		shipment.OrderCancelled,
	},
	shipment.OrderReady: {
		shipment.OrderDispatched,
		shipment.OrderHold,
		shipment.OrderCancelled,
		shipment.OrderPending,
	},
	shipment.OrderDispatched: {
		shipment.OrderInProgress,
		shipment.OrderDelivered,
		shipment.OrderCompleted,
		shipment.OrderHold,
		shipment.OrderCancelled,
		shipment.OrderFailed,
		shipment.OrderReady, // Driver unassigned
	},
	shipment.OrderInProgress: {
		shipment.OrderDelivered,
		shipment.OrderCompleted,
		shipment.OrderHold,
		shipment.OrderFailed,
		shipment.OrderCancelled,
	},
	shipment.OrderDelivered: {
		shipment.OrderCompleted,
		shipment.OrderInvoiced,
	},
	shipment.OrderCompleted: {
		shipment.OrderInvoiced,
	},
	shipment.OrderHold: {
		shipment.OrderPending,
		shipment.OrderReady,
		shipment.OrderDispatched,
		shipment.OrderInProgress,
		shipment.OrderCancelled,
	},
	shipment.OrderFailed: {
		shipment.OrderPending, // Retry the move
		shipment.OrderReady,
		shipment.OrderDispatched,
		shipment.OrderCancelled,
	},
	shipment.OrderCancelled: {
		// Terminal state - no transitions
	},
	shipment.OrderInvoiced: {
		// Terminal state - no transitions
	},
}

// State machine for trip status transitions
var tripTransitions = map[trip.TripStatus][]trip.TripStatus{
	trip.StatusPlanned: {
		trip.StatusAssigned,
		trip.StatusDispatched,
		trip.StatusCancelled,
	},
	trip.StatusAssigned: {
		trip.StatusDispatched,
		trip.StatusPlanned,
		trip.StatusCancelled,
	},
	trip.StatusDispatched: {
		trip.StatusEnRoute,
		trip.StatusInProgress,
		trip.StatusCompleted,
		trip.StatusCancelled,
		trip.StatusFailed,
	},
	trip.StatusEnRoute: {
		trip.StatusInProgress,
		trip.StatusCompleted,
		trip.StatusFailed,
	},
	trip.StatusInProgress: {
		trip.StatusCompleted,
		trip.StatusFailed,
	},
	trip.StatusFailed: {
		trip.StatusPlanned,
		trip.StatusCancelled,
	},
	trip.StatusCompleted: {
		// Terminal state - no transitions
	},
	trip.StatusCancelled: {
		// Terminal state - no transitions
	},
}

// ValidateOrderTransition checks if an order status transition is allowed
func ValidateOrderTransition(current, next shipment.OrderStatus) error {
	allowed, exists := orderTransitions[current]
	if !exists {
		return appErrors.NewAppError(
			appErrors.CodeInvalidTransition,
			fmt.Sprintf("Unknown current order status: %s", current),
			shipment.ErrInvalidStatus,
		)
	}

	for _, s := range allowed {
		if next == s {
			return nil
		}
	}

	return appErrors.NewAppError(
		appErrors.CodeInvalidTransition,
		fmt.Sprintf("Cannot transition order from %s to %s", current, next),
		shipment.ErrInvalidTransition,
	)
}

// ValidateTripTransition checks if a trip status transition is allowed
func ValidateTripTransition(current, next trip.TripStatus) error {
	for _, s := range tripTransitions[current] {
		if next == s {
			return nil
		}
	}

	return appErrors.NewAppError(
		appErrors.CodeInvalidTransition,
		fmt.Sprintf("Cannot transition trip from %s to %s", current, next),
		trip.ErrInvalidStatus,
	)
}

// AllowedOrderTransitions returns allowed next statuses
func AllowedOrderTransitions(current shipment.OrderStatus) []shipment.OrderStatus {
	return orderTransitions[current]
}
