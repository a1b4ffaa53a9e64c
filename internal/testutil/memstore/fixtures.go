package memstore

import (
	"fmt"
	"time"

	"drayage-tms/internal/domain/shipment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Hierarchy is a seeded shipment with its containers and their orders.
type Hierarchy struct {
	Shipment   shipment.Shipment
	Containers []shipment.Container
	Orders     [][]shipment.Order // indexed like Containers
}

// SeedHierarchy stores one PENDING shipment owned by customerID (nil for none)
// with the given number of 40' containers, each carrying ordersPer PENDING orders.
func (s *Store) SeedHierarchy(customerID *uuid.UUID, carrier string, containers, ordersPer int) Hierarchy {
	base := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	h := Hierarchy{
		Shipment: shipment.Shipment{
			ID:          uuid.New(),
			Reference:   "BKG-" + uuid.NewString()[:8],
			CustomerID:  customerID,
			CarrierCode: carrier,
			Type:        shipment.TypeImport,
			Status:      shipment.ShipmentPending,
			CreatedAt:   base,
			UpdatedAt:   base,
		},
	}
	s.AddShipment(h.Shipment)

	for i := 0; i < containers; i++ {
		c := shipment.Container{
			ID:              uuid.New(),
			ShipmentID:      h.Shipment.ID,
			ContainerNumber: fmt.Sprintf("MSCU%07d", i+1),
			Size:            "40",
			LifecycleStatus: shipment.LifecycleBooked,
			DemurrageStatus: shipment.DemurrageOK,
			EstimatedCharge: decimal.Zero,
			CreatedAt:       base,
			UpdatedAt:       base,
		}
		s.AddContainer(c)
		h.Containers = append(h.Containers, c)

		var orders []shipment.Order
		for j := 0; j < ordersPer; j++ {
			o := shipment.Order{
				ID:           uuid.New(),
				OrderNumber:  fmt.Sprintf("ORD-%d-%d", i+1, j+1),
				ContainerID:  c.ID,
				ShipmentID:   h.Shipment.ID,
				Status:       shipment.OrderPending,
				MoveType:     "IMPORT_DELIVERY",
				TotalCharges: decimal.Zero,
				CreatedAt:    base.Add(time.Duration(j) * time.Minute),
				UpdatedAt:    base,
			}
			s.AddOrder(o)
			orders = append(orders, o)
		}
		h.Orders = append(h.Orders, orders)
	}
	return h
}

// SetOrderStatus overwrites an order's status without any reaction.
func (s *Store) SetOrderStatus(id uuid.UUID, status shipment.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.d.orders[id]
	o.Status = status
	s.d.orders[id] = o
}

// RemoveShipment deletes a shipment row to simulate a dangling parent reference.
func (s *Store) RemoveShipment(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.d.shipments, id)
}
