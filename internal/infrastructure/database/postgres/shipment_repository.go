package postgres

import (
	"context"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var completedOrderStatuses = []string{string(shipment.OrderCompleted), string(shipment.OrderInvoiced)}
var inFlightOrderStatuses = []string{string(shipment.OrderDispatched), string(shipment.OrderInProgress)}

type ShipmentRepository struct {
	db *DB
}

func NewShipmentRepository(db *DB) shipment.Repository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) GetShipment(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	return r.getShipment(r.db.conn(ctx), id)
}

func (r *ShipmentRepository) GetShipmentForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	return r.getShipment(r.db.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *ShipmentRepository) getShipment(db *gorm.DB, id uuid.UUID) (*shipment.Shipment, error) {
	var dbModel models.ShipmentModel
	err := db.Where("id = ?", id).First(&dbModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shipment.ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return toShipmentEntity(&dbModel), nil
}

type orderCountRow struct {
	Total      int
	Completed  int
	InProgress int
}

func (r *ShipmentRepository) AggregateShipment(ctx context.Context, shipmentID uuid.UUID) (*shipment.ShipmentCounts, error) {
	db := r.db.conn(ctx)

	var containerRow struct {
		Total        int
		Completed    int
		EarliestFree *time.Time
	}
	err := db.Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE lifecycle_status = ?) AS completed,
			MIN(free_time_expires_at) FILTER (WHERE gate_out_at IS NOT NULL AND gate_in_at IS NULL) AS earliest_free
		FROM containers
		WHERE shipment_id = ?`,
		string(shipment.LifecycleCompleted), shipmentID,
	).Scan(&containerRow).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shipment containers: %w", err)
	}

	var orders orderCountRow
	err = db.Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ?) AS completed,
			COUNT(*) FILTER (WHERE status IN ?) AS in_progress
		FROM orders
		WHERE shipment_id = ? AND deleted_at IS NULL`,
		completedOrderStatuses, inFlightOrderStatuses, shipmentID,
	).Scan(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shipment orders: %w", err)
	}

	return &shipment.ShipmentCounts{
		TotalContainers:     containerRow.Total,
		CompletedContainers: containerRow.Completed,
		Orders: shipment.OrderCounts{
			Total:      orders.Total,
			Completed:  orders.Completed,
			InProgress: orders.InProgress,
		},
		EarliestFreeTimeEnd: containerRow.EarliestFree,
	}, nil
}

func (r *ShipmentRepository) UpdateShipmentAggregates(ctx context.Context, s *shipment.Shipment) error {
	s.UpdatedAt = time.Now()

	result := r.db.conn(ctx).
		Model(&models.ShipmentModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":               string(s.Status),
			"total_containers":     s.TotalContainers,
			"completed_containers": s.CompletedContainers,
			"total_orders":         s.TotalOrders,
			"completed_orders":     s.CompletedOrders,
			"last_free_day":        s.LastFreeDay,
			"updated_at":           s.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update shipment aggregates: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shipment.ErrShipmentNotFound
	}

	return nil
}

func (r *ShipmentRepository) GetContainer(ctx context.Context, id uuid.UUID) (*shipment.Container, error) {
	return r.getContainer(r.db.conn(ctx), id)
}

func (r *ShipmentRepository) GetContainerForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Container, error) {
	return r.getContainer(r.db.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *ShipmentRepository) getContainer(db *gorm.DB, id uuid.UUID) (*shipment.Container, error) {
	var dbModel models.ContainerModel
	err := db.Where("id = ?", id).First(&dbModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shipment.ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}
	return toContainerEntity(&dbModel), nil
}

func (r *ShipmentRepository) AggregateContainerOrders(ctx context.Context, containerID uuid.UUID) (*shipment.OrderCounts, error) {
	var row orderCountRow
	err := r.db.conn(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ?) AS completed,
			COUNT(*) FILTER (WHERE status IN ?) AS in_progress
		FROM orders
		WHERE container_id = ? AND deleted_at IS NULL`,
		completedOrderStatuses, inFlightOrderStatuses, containerID,
	).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate container orders: %w", err)
	}

	return &shipment.OrderCounts{
		Total:      row.Total,
		Completed:  row.Completed,
		InProgress: row.InProgress,
	}, nil
}

func (r *ShipmentRepository) UpdateContainerLifecycle(ctx context.Context, id uuid.UUID, status shipment.LifecycleStatus) error {
	result := r.db.conn(ctx).
		Model(&models.ContainerModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lifecycle_status": string(status),
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update container lifecycle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shipment.ErrContainerNotFound
	}

	return nil
}

func (r *ShipmentRepository) UpdateContainerFreeTime(ctx context.Context, c *shipment.Container, expectedVersion int) error {
	c.UpdatedAt = time.Now()

	result := r.db.conn(ctx).
		Model(&models.ContainerModel{}).
		Where("id = ? AND version = ?", c.ID, expectedVersion).
		Updates(map[string]interface{}{
			"gate_out_at":          c.GateOutAt,
			"gate_in_at":           c.GateInAt,
			"free_time_expires_at": c.FreeTimeExpiresAt,
			"demurrage_status":     string(c.DemurrageStatus),
			"estimated_charge":     c.EstimatedCharge,
			"version":              expectedVersion + 1,
			"updated_at":           c.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update container free time: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shipment.ErrVersionConflict
	}

	c.Version = expectedVersion + 1
	return nil
}

func (r *ShipmentRepository) ListOpenContainers(ctx context.Context, afterID uuid.UUID, limit int) ([]*shipment.Container, error) {
	var dbModels []models.ContainerModel
	err := r.db.conn(ctx).
		Where("gate_out_at IS NOT NULL AND gate_in_at IS NULL AND id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open containers: %w", err)
	}

	containers := make([]*shipment.Container, len(dbModels))
	for i := range dbModels {
		containers[i] = toContainerEntity(&dbModels[i])
	}
	return containers, nil
}

func (r *ShipmentRepository) GetOrder(ctx context.Context, id uuid.UUID) (*shipment.Order, error) {
	return r.getOrder(r.db.conn(ctx), id)
}

func (r *ShipmentRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Order, error) {
	return r.getOrder(r.db.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *ShipmentRepository) getOrder(db *gorm.DB, id uuid.UUID) (*shipment.Order, error) {
	var dbModel models.OrderModel
	err := db.Where("id = ?", id).First(&dbModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shipment.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrderEntity(&dbModel), nil
}

func (r *ShipmentRepository) ListOrdersByContainer(ctx context.Context, containerID uuid.UUID) ([]*shipment.Order, error) {
	var dbModels []models.OrderModel
	err := r.db.conn(ctx).
		Where("container_id = ? AND deleted_at IS NULL", containerID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list container orders: %w", err)
	}

	orders := make([]*shipment.Order, len(dbModels))
	for i := range dbModels {
		orders[i] = toOrderEntity(&dbModels[i])
	}
	return orders, nil
}

func (r *ShipmentRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status shipment.OrderStatus) error {
	return r.updateOrder(ctx, id, map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	})
}

func (r *ShipmentRepository) UpdateOrderTotalCharges(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.updateOrder(ctx, id, map[string]interface{}{
		"total_charges": total,
		"updated_at":    time.Now(),
	})
}

func (r *ShipmentRepository) SoftDeleteOrder(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateOrder(ctx, id, map[string]interface{}{
		"deleted_at": at,
		"updated_at": at,
	})
}

func (r *ShipmentRepository) updateOrder(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.conn(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", id).
		Updates(fields)

	if result.Error != nil {
		return fmt.Errorf("failed to update order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shipment.ErrOrderNotFound
	}

	return nil
}

func toShipmentEntity(m *models.ShipmentModel) *shipment.Shipment {
	return &shipment.Shipment{
		ID:                  m.ID,
		Reference:           m.Reference,
		CustomerID:          m.CustomerID,
		CarrierCode:         m.CarrierCode,
		Type:                shipment.ShipmentType(m.ShipmentType),
		Status:              shipment.ShipmentStatus(m.Status),
		TotalContainers:     m.TotalContainers,
		CompletedContainers: m.CompletedContainers,
		TotalOrders:         m.TotalOrders,
		CompletedOrders:     m.CompletedOrders,
		LastFreeDay:         m.LastFreeDay,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toContainerEntity(m *models.ContainerModel) *shipment.Container {
	return &shipment.Container{
		ID:                m.ID,
		ShipmentID:        m.ShipmentID,
		ContainerNumber:   m.ContainerNumber,
		Size:              m.Size,
		IsHazmat:          m.IsHazmat,
		IsOverweight:      m.IsOverweight,
		IsReefer:          m.IsReefer,
		LifecycleStatus:   shipment.LifecycleStatus(m.LifecycleStatus),
		GateOutAt:         m.GateOutAt,
		GateInAt:          m.GateInAt,
		FreeTimeExpiresAt: m.FreeTimeExpiresAt,
		DemurrageStatus:   shipment.DemurrageStatus(m.DemurrageStatus),
		EstimatedCharge:   m.EstimatedCharge,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toOrderEntity(m *models.OrderModel) *shipment.Order {
	return &shipment.Order{
		ID:           m.ID,
		OrderNumber:  m.OrderNumber,
		ContainerID:  m.ContainerID,
		ShipmentID:   m.ShipmentID,
		TripID:       m.TripID,
		Status:       shipment.OrderStatus(m.Status),
		MoveType:     m.MoveType,
		TotalCharges: m.TotalCharges,
		DeletedAt:    m.DeletedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
