package shipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShipmentType distinguishes inbound from outbound moves
type ShipmentType string

const (
	TypeImport ShipmentType = "IMPORT"
	TypeExport ShipmentType = "EXPORT"
)

// ShipmentStatus is derived from the shipment's containers and orders
type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "PENDING"
	ShipmentInProgress ShipmentStatus = "IN_PROGRESS"
	ShipmentCompleted  ShipmentStatus = "COMPLETED"
	ShipmentCancelled  ShipmentStatus = "CANCELLED"
)

// LifecycleStatus represents where a container is in the drayage cycle
type LifecycleStatus string

const (
	LifecycleBooked      LifecycleStatus = "BOOKED"
	LifecycleAvailable   LifecycleStatus = "AVAILABLE"
	LifecyclePickedUp    LifecycleStatus = "PICKED_UP"
	LifecycleDelivered   LifecycleStatus = "DELIVERED"
	LifecycleDropped     LifecycleStatus = "DROPPED"
	LifecycleEmptyPicked LifecycleStatus = "EMPTY_PICKED"
	LifecycleReturned    LifecycleStatus = "RETURNED"
	LifecycleCompleted   LifecycleStatus = "COMPLETED"
)

// DemurrageStatus reports how much of the free time a container has used
type DemurrageStatus string

const (
	DemurrageOK       DemurrageStatus = "OK"
	DemurrageWarning  DemurrageStatus = "WARNING"
	DemurrageCritical DemurrageStatus = "CRITICAL"
	DemurrageOverdue  DemurrageStatus = "OVERDUE"
)

// Rank orders demurrage statuses by severity.
func (s DemurrageStatus) Rank() int {
	switch s {
	case DemurrageWarning:
		return 1
	case DemurrageCritical:
		return 2
	case DemurrageOverdue:
		return 3
	default:
		return 0
	}
}

// OrderStatus represents the status of a drayage order
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderReady      OrderStatus = "READY"
	OrderDispatched OrderStatus = "DISPATCHED"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderHold       OrderStatus = "HOLD"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderFailed     OrderStatus = "FAILED"
	OrderInvoiced   OrderStatus = "INVOICED"
)

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderReady, OrderDispatched, OrderInProgress, OrderDelivered,
		OrderCompleted, OrderHold, OrderCancelled, OrderFailed, OrderInvoiced:
		return true
	}
	return false
}

// CountsAsCompleted reports whether the order is finished for aggregation purposes.
// INVOICED only follows COMPLETED/DELIVERED, so it keeps counting as completed.
func (s OrderStatus) CountsAsCompleted() bool {
	return s == OrderCompleted || s == OrderInvoiced
}

// IsInFlight reports whether a driver is actively working the order.
func (s OrderStatus) IsInFlight() bool {
	return s == OrderDispatched || s == OrderInProgress
}

// Shipment is a booking that owns many containers
type Shipment struct {
	ID          uuid.UUID
	Reference   string
	CustomerID  *uuid.UUID
	CarrierCode string
	Type        ShipmentType
	Status      ShipmentStatus

	// Aggregates, always recomputed from children
	TotalContainers     int
	CompletedContainers int
	TotalOrders         int
	CompletedOrders     int
	LastFreeDay         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Container is a single box moved for a shipment
type Container struct {
	ID              uuid.UUID
	ShipmentID      uuid.UUID
	ContainerNumber string
	Size            string
	IsHazmat        bool
	IsOverweight    bool
	IsReefer        bool

	LifecycleStatus LifecycleStatus

	// Free time tracking
	GateOutAt         *time.Time
	GateInAt          *time.Time
	FreeTimeExpiresAt *time.Time
	DemurrageStatus   DemurrageStatus
	EstimatedCharge   decimal.Decimal

	// Version guards concurrent demurrage writes
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOut reports whether the container has left the terminal and not come back.
func (c *Container) IsOut() bool {
	return c.GateOutAt != nil && c.GateInAt == nil
}

// Order is one move of a container
type Order struct {
	ID           uuid.UUID
	OrderNumber  string
	ContainerID  uuid.UUID
	ShipmentID   uuid.UUID
	TripID       *uuid.UUID
	Status       OrderStatus
	MoveType     string
	TotalCharges decimal.Decimal
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderCounts is the per-parent order aggregate
type OrderCounts struct {
	Total      int
	Completed  int
	InProgress int
}

// ShipmentCounts is the shipment level aggregate over containers and orders
type ShipmentCounts struct {
	TotalContainers     int
	CompletedContainers int
	Orders              OrderCounts
	EarliestFreeTimeEnd *time.Time
}
