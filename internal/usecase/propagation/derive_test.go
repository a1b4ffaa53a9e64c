package propagation

import (
	"testing"

	"drayage-tms/internal/domain/shipment"

	"github.com/stretchr/testify/assert"
)

func TestDeriveLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		counts shipment.OrderCounts
		want   shipment.LifecycleStatus
	}{
		{"no orders", shipment.OrderCounts{}, shipment.LifecycleBooked},
		{"all pending", shipment.OrderCounts{Total: 2}, shipment.LifecycleBooked},
		{"one dispatched", shipment.OrderCounts{Total: 2, InProgress: 1}, shipment.LifecyclePickedUp},
		{"in flight wins over partial completion", shipment.OrderCounts{Total: 3, Completed: 1, InProgress: 1}, shipment.LifecyclePickedUp},
		{"partially completed", shipment.OrderCounts{Total: 2, Completed: 1}, shipment.LifecycleDelivered},
		{"all completed", shipment.OrderCounts{Total: 2, Completed: 2}, shipment.LifecycleCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveLifecycle(tt.counts))
		})
	}
}

func TestDeriveShipmentStatus(t *testing.T) {
	tests := []struct {
		name    string
		counts  shipment.ShipmentCounts
		current shipment.ShipmentStatus
		want    shipment.ShipmentStatus
	}{
		{
			name:    "empty shipment stays pending",
			counts:  shipment.ShipmentCounts{},
			current: shipment.ShipmentPending,
			want:    shipment.ShipmentPending,
		},
		{
			name:    "order in flight",
			counts:  shipment.ShipmentCounts{TotalContainers: 2, Orders: shipment.OrderCounts{Total: 2, InProgress: 1}},
			current: shipment.ShipmentPending,
			want:    shipment.ShipmentInProgress,
		},
		{
			name:    "some orders completed",
			counts:  shipment.ShipmentCounts{TotalContainers: 2, Orders: shipment.OrderCounts{Total: 2, Completed: 1}},
			current: shipment.ShipmentPending,
			want:    shipment.ShipmentInProgress,
		},
		{
			name:    "all containers completed",
			counts:  shipment.ShipmentCounts{TotalContainers: 2, CompletedContainers: 2, Orders: shipment.OrderCounts{Total: 2, Completed: 2}},
			current: shipment.ShipmentInProgress,
			want:    shipment.ShipmentCompleted,
		},
		{
			name:    "reverts to pending when work is undone",
			counts:  shipment.ShipmentCounts{TotalContainers: 1, Orders: shipment.OrderCounts{Total: 1}},
			current: shipment.ShipmentInProgress,
			want:    shipment.ShipmentPending,
		},
		{
			name:    "cancelled is sticky",
			counts:  shipment.ShipmentCounts{TotalContainers: 1, Orders: shipment.OrderCounts{Total: 1, InProgress: 1}},
			current: shipment.ShipmentCancelled,
			want:    shipment.ShipmentCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveShipmentStatus(tt.counts, tt.current))
		})
	}
}
