package propagation

import (
	"drayage-tms/internal/domain/shipment"
)

// DeriveLifecycle maps a container's order counts to its lifecycle status.
func DeriveLifecycle(c shipment.OrderCounts) shipment.LifecycleStatus {
	switch {
	case c.Total > 0 && c.Completed == c.Total:
		return shipment.LifecycleCompleted
	case c.InProgress > 0:
		return shipment.LifecyclePickedUp
	case c.Completed > 0 && c.Completed < c.Total:
		return shipment.LifecycleDelivered
	default:
		return shipment.LifecycleBooked
	}
}

// DeriveShipmentStatus maps the shipment aggregate to a status. CANCELLED is
// set by the booking service and survives recomputation unless every
// container has completed.
func DeriveShipmentStatus(c shipment.ShipmentCounts, current shipment.ShipmentStatus) shipment.ShipmentStatus {
	switch {
	case c.TotalContainers > 0 && c.CompletedContainers == c.TotalContainers:
		return shipment.ShipmentCompleted
	case current == shipment.ShipmentCancelled:
		return shipment.ShipmentCancelled
	case c.Orders.InProgress > 0,
		c.Orders.Completed > 0 && c.Orders.Completed < c.Orders.Total,
		c.CompletedContainers > 0:
		return shipment.ShipmentInProgress
	default:
		return shipment.ShipmentPending
	}
}
