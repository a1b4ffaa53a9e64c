package postgres

import (
	"context"
	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BillingRepository struct {
	db *DB
}

func NewBillingRepository(db *DB) billing.Repository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) FindLaneRate(ctx context.Context, customerID *uuid.UUID, containerSize string, asOf time.Time) (*billing.LaneRate, error) {
	query := r.db.conn(ctx).
		Where("container_size = ? AND effective_date <= ?", containerSize, asOf)
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	} else {
		query = query.Where("customer_id IS NULL")
	}

	var m models.LaneRateModel
	err := query.Order("effective_date DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrLaneRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lane rate: %w", err)
	}

	return &billing.LaneRate{
		ID:               m.ID,
		CustomerID:       m.CustomerID,
		ContainerSize:    m.ContainerSize,
		BaseRate:         m.BaseRate,
		FuelSurchargePct: m.FuelSurchargePct,
		HazmatFee:        m.HazmatFee,
		OverweightFee:    m.OverweightFee,
		ReeferFee:        m.ReeferFee,
		EffectiveDate:    m.EffectiveDate,
	}, nil
}

func (r *BillingRepository) ListChargeLines(ctx context.Context, orderID uuid.UUID) ([]*billing.ChargeLine, error) {
	var dbModels []models.ChargeLineModel
	err := r.db.conn(ctx).
		Where("order_id = ? AND deleted_at IS NULL", orderID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list charge lines: %w", err)
	}

	lines := make([]*billing.ChargeLine, len(dbModels))
	for i := range dbModels {
		lines[i] = toChargeLineEntity(&dbModels[i])
	}
	return lines, nil
}

func (r *BillingRepository) SoftDeleteAutoChargeLines(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.conn(ctx).
		Model(&models.ChargeLineModel{}).
		Where("order_id = ? AND auto_calculated = ? AND deleted_at IS NULL", orderID, true).
		Update("deleted_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to soft delete charge lines: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *BillingRepository) CreateChargeLines(ctx context.Context, lines []*billing.ChargeLine) error {
	if len(lines) == 0 {
		return nil
	}

	now := time.Now()
	dbModels := make([]*models.ChargeLineModel, len(lines))
	for i, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.CreatedAt = now
		dbModels[i] = toChargeLineModel(l)
	}

	if err := r.db.conn(ctx).Create(&dbModels).Error; err != nil {
		return fmt.Errorf("failed to create charge lines: %w", err)
	}
	return nil
}

func (r *BillingRepository) HasInvoiceLineForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.conn(ctx).
		Model(&models.InvoiceLineItemModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check invoice lines: %w", err)
	}
	return count > 0, nil
}

func (r *BillingRepository) FindDraftInvoiceForOrder(ctx context.Context, orderID uuid.UUID) (*billing.Invoice, error) {
	var m models.InvoiceModel
	err := r.db.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, string(billing.InvoiceDraft)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find draft invoice: %w", err)
	}
	return toInvoiceEntity(&m), nil
}

func (r *BillingRepository) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*billing.Invoice, error) {
	var m models.InvoiceModel
	err := r.db.conn(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return toInvoiceEntity(&m), nil
}

func (r *BillingRepository) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	now := time.Now()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now

	if err := r.db.conn(ctx).Create(toInvoiceModel(inv)).Error; err != nil {
		if isUniqueViolation(err) {
			return billing.ErrAlreadyInvoiced
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *BillingRepository) CreateInvoiceLineItems(ctx context.Context, items []*billing.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now()
	dbModels := make([]*models.InvoiceLineItemModel, len(items))
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.CreatedAt = now
		dbModels[i] = &models.InvoiceLineItemModel{
			ID:             it.ID,
			InvoiceID:      it.InvoiceID,
			OrderID:        it.OrderID,
			OrderNumber:    it.OrderNumber,
			ContainerID:    it.ContainerID,
			ChargeType:     string(it.ChargeType),
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitRate:       it.UnitRate,
			Amount:         it.Amount,
			IdempotencyKey: it.IdempotencyKey,
			CreatedAt:      it.CreatedAt,
		}
	}

	// A line that already exists under its idempotency key is kept as is.
	err := r.db.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(&dbModels).Error
	if err != nil {
		return fmt.Errorf("failed to create invoice line items: %w", err)
	}
	return nil
}

func (r *BillingRepository) ListInvoiceLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*billing.InvoiceLineItem, error) {
	var dbModels []models.InvoiceLineItemModel
	err := r.db.conn(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice line items: %w", err)
	}

	items := make([]*billing.InvoiceLineItem, len(dbModels))
	for i, m := range dbModels {
		items[i] = &billing.InvoiceLineItem{
			ID:             m.ID,
			InvoiceID:      m.InvoiceID,
			OrderID:        m.OrderID,
			OrderNumber:    m.OrderNumber,
			ContainerID:    m.ContainerID,
			ChargeType:     billing.ChargeType(m.ChargeType),
			Description:    m.Description,
			Quantity:       m.Quantity,
			UnitRate:       m.UnitRate,
			Amount:         m.Amount,
			IdempotencyKey: m.IdempotencyKey,
			CreatedAt:      m.CreatedAt,
		}
	}
	return items, nil
}

func (r *BillingRepository) UpdateInvoiceTotals(ctx context.Context, inv *billing.Invoice) error {
	inv.UpdatedAt = time.Now()

	result := r.db.conn(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", inv.ID).
		Updates(map[string]interface{}{
			"subtotal":     inv.Subtotal,
			"total_amount": inv.TotalAmount,
			"balance_due":  inv.BalanceDue,
			"updated_at":   inv.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update invoice totals: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

// ListBillableChassisUsage returns the container's returned, unbilled chassis
// usages. A chassis still out keeps accruing and waits for a later invoice.
func (r *BillingRepository) ListBillableChassisUsage(ctx context.Context, containerID uuid.UUID) ([]*billing.ChassisUsage, error) {
	var dbModels []models.ChassisUsageModel
	err := r.db.conn(ctx).
		Where("container_id = ? AND billed = ? AND returned_at IS NOT NULL", containerID, false).
		Order("picked_up_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chassis usage: %w", err)
	}

	usages := make([]*billing.ChassisUsage, len(dbModels))
	for i, m := range dbModels {
		usages[i] = &billing.ChassisUsage{
			ID:            m.ID,
			ContainerID:   m.ContainerID,
			ChassisNumber: m.ChassisNumber,
			PickedUpAt:    m.PickedUpAt,
			ReturnedAt:    m.ReturnedAt,
			FreeDays:      m.FreeDays,
			DailyRate:     m.DailyRate,
			Billed:        m.Billed,
			InvoiceID:     m.InvoiceID,
		}
	}
	return usages, nil
}

func (r *BillingRepository) MarkChassisUsageBilled(ctx context.Context, id, invoiceID uuid.UUID) error {
	result := r.db.conn(ctx).
		Model(&models.ChassisUsageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"billed":     true,
			"invoice_id": invoiceID,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark chassis usage billed: %w", result.Error)
	}
	return nil
}

func toChargeLineModel(l *billing.ChargeLine) *models.ChargeLineModel {
	return &models.ChargeLineModel{
		ID:             l.ID,
		OrderID:        l.OrderID,
		ContainerID:    l.ContainerID,
		ChargeType:     string(l.ChargeType),
		Description:    l.Description,
		Quantity:       l.Quantity,
		UnitRate:       l.UnitRate,
		Amount:         l.Amount,
		AutoCalculated: l.AutoCalculated,
		IdempotencyKey: l.IdempotencyKey,
		SourceEventID:  l.SourceEventID,
		DeletedAt:      l.DeletedAt,
		CreatedAt:      l.CreatedAt,
	}
}

func toChargeLineEntity(m *models.ChargeLineModel) *billing.ChargeLine {
	return &billing.ChargeLine{
		ID:             m.ID,
		OrderID:        m.OrderID,
		ContainerID:    m.ContainerID,
		ChargeType:     billing.ChargeType(m.ChargeType),
		Description:    m.Description,
		Quantity:       m.Quantity,
		UnitRate:       m.UnitRate,
		Amount:         m.Amount,
		AutoCalculated: m.AutoCalculated,
		IdempotencyKey: m.IdempotencyKey,
		SourceEventID:  m.SourceEventID,
		DeletedAt:      m.DeletedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toInvoiceModel(inv *billing.Invoice) *models.InvoiceModel {
	return &models.InvoiceModel{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID,
		OrderID:        inv.OrderID,
		Status:         string(inv.Status),
		Currency:       inv.Currency,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Subtotal:       inv.Subtotal,
		TotalAmount:    inv.TotalAmount,
		AmountPaid:     inv.AmountPaid,
		BalanceDue:     inv.BalanceDue,
		IdempotencyKey: inv.IdempotencyKey,
		SourceEventID:  inv.SourceEventID,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toInvoiceEntity(m *models.InvoiceModel) *billing.Invoice {
	return &billing.Invoice{
		ID:             m.ID,
		InvoiceNumber:  m.InvoiceNumber,
		CustomerID:     m.CustomerID,
		OrderID:        m.OrderID,
		Status:         billing.InvoiceStatus(m.Status),
		Currency:       m.Currency,
		IssueDate:      m.IssueDate,
		DueDate:        m.DueDate,
		Subtotal:       m.Subtotal,
		TotalAmount:    m.TotalAmount,
		AmountPaid:     m.AmountPaid,
		BalanceDue:     m.BalanceDue,
		IdempotencyKey: m.IdempotencyKey,
		SourceEventID:  m.SourceEventID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
