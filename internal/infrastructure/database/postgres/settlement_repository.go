package postgres

import (
	"context"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	appErrors "drayage-tms/pkg/errors"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository struct {
	db *DB
}

func NewSettlementRepository(db *DB) settlement.Repository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) FindActivePayRate(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*settlement.PayRate, error) {
	var m models.DriverPayRateModel
	err := r.db.conn(ctx).
		Where("driver_id = ? AND effective_date <= ?", driverID, asOf).
		Order("effective_date DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrPayRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pay rate: %w", err)
	}

	return &settlement.PayRate{
		ID:                 m.ID,
		DriverID:           m.DriverID,
		PayMethod:          settlement.PayMethod(m.PayMethod),
		Rate:               m.Rate,
		WaitingRatePerHour: m.WaitingRatePerHour,
		FreeWaitingMinutes: m.FreeWaitingMinutes,
		EffectiveDate:      m.EffectiveDate,
	}, nil
}

func (r *SettlementRepository) FindSettlementForUpdate(ctx context.Context, driverID uuid.UUID, periodStart time.Time) (*settlement.DriverSettlement, error) {
	var m models.DriverSettlementModel
	err := r.db.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("driver_id = ? AND period_start = ?", driverID, periodStart).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find settlement: %w", err)
	}
	return toSettlementEntity(&m), nil
}

func (r *SettlementRepository) FindCurrentSettlement(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*settlement.DriverSettlement, error) {
	var m models.DriverSettlementModel
	err := r.db.conn(ctx).
		Where("driver_id = ? AND period_start <= ? AND period_start > ?", driverID, asOf, asOf.AddDate(0, 0, -7)).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find current settlement: %w", err)
	}
	return toSettlementEntity(&m), nil
}

func (r *SettlementRepository) CreateSettlement(ctx context.Context, s *settlement.DriverSettlement) error {
	now := time.Now()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	if err := r.db.conn(ctx).Create(toSettlementModel(s)).Error; err != nil {
		// another transaction opened the same period; retrying will find it
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: settlement period already exists", appErrors.ErrLockContention)
		}
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

func (r *SettlementRepository) UpdateSettlementTotals(ctx context.Context, s *settlement.DriverSettlement) error {
	s.UpdatedAt = time.Now()

	result := r.db.conn(ctx).
		Model(&models.DriverSettlementModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"gross_earnings": s.GrossEarnings,
			"deductions":     s.Deductions,
			"net_pay":        s.NetPay,
			"total_miles":    s.TotalMiles,
			"total_trips":    s.TotalTrips,
			"updated_at":     s.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update settlement totals: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return settlement.ErrSettlementNotFound
	}
	return nil
}

func (r *SettlementRepository) HasLineItemsForTrip(ctx context.Context, tripID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.conn(ctx).
		Model(&models.SettlementLineItemModel{}).
		Where("trip_id = ?", tripID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check settlement lines: %w", err)
	}
	return count > 0, nil
}

func (r *SettlementRepository) CreateLineItems(ctx context.Context, items []*settlement.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now()
	dbModels := make([]*models.SettlementLineItemModel, len(items))
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.CreatedAt = now
		dbModels[i] = &models.SettlementLineItemModel{
			ID:             it.ID,
			SettlementID:   it.SettlementID,
			TripID:         it.TripID,
			Kind:           string(it.Kind),
			Description:    it.Description,
			Quantity:       it.Quantity,
			Rate:           it.Rate,
			Amount:         it.Amount,
			Miles:          it.Miles,
			IdempotencyKey: it.IdempotencyKey,
			SourceEventID:  it.SourceEventID,
			CreatedAt:      it.CreatedAt,
		}
	}

	if err := r.db.conn(ctx).Create(&dbModels).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: trip settled concurrently", appErrors.ErrLockContention)
		}
		return fmt.Errorf("failed to create settlement line items: %w", err)
	}
	return nil
}

func (r *SettlementRepository) ListLineItems(ctx context.Context, settlementID uuid.UUID) ([]*settlement.LineItem, error) {
	var dbModels []models.SettlementLineItemModel
	err := r.db.conn(ctx).
		Where("settlement_id = ?", settlementID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement line items: %w", err)
	}

	items := make([]*settlement.LineItem, len(dbModels))
	for i, m := range dbModels {
		items[i] = &settlement.LineItem{
			ID:             m.ID,
			SettlementID:   m.SettlementID,
			TripID:         m.TripID,
			Kind:           settlement.LineKind(m.Kind),
			Description:    m.Description,
			Quantity:       m.Quantity,
			Rate:           m.Rate,
			Amount:         m.Amount,
			Miles:          m.Miles,
			IdempotencyKey: m.IdempotencyKey,
			SourceEventID:  m.SourceEventID,
			CreatedAt:      m.CreatedAt,
		}
	}
	return items, nil
}

func toSettlementModel(s *settlement.DriverSettlement) *models.DriverSettlementModel {
	return &models.DriverSettlementModel{
		ID:            s.ID,
		DriverID:      s.DriverID,
		PeriodStart:   s.PeriodStart,
		PeriodEnd:     s.PeriodEnd,
		Status:        string(s.Status),
		GrossEarnings: s.GrossEarnings,
		Deductions:    s.Deductions,
		NetPay:        s.NetPay,
		TotalMiles:    s.TotalMiles,
		TotalTrips:    s.TotalTrips,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toSettlementEntity(m *models.DriverSettlementModel) *settlement.DriverSettlement {
	return &settlement.DriverSettlement{
		ID:            m.ID,
		DriverID:      m.DriverID,
		PeriodStart:   m.PeriodStart,
		PeriodEnd:     m.PeriodEnd,
		Status:        settlement.Status(m.Status),
		GrossEarnings: m.GrossEarnings,
		Deductions:    m.Deductions,
		NetPay:        m.NetPay,
		TotalMiles:    m.TotalMiles,
		TotalTrips:    m.TotalTrips,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
