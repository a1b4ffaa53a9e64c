package postgres

import (
	"context"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FreeTimeRepository struct {
	db *DB
}

func NewFreeTimeRepository(db *DB) freetime.Repository {
	return &FreeTimeRepository{db: db}
}

func (r *FreeTimeRepository) FindRule(ctx context.Context, carrierCode string) (*freetime.Rule, error) {
	var m models.FreeTimeRuleModel
	err := r.db.conn(ctx).Where("carrier_code = ?", carrierCode).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, freetime.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find free time rule: %w", err)
	}

	return &freetime.Rule{
		ID:              m.ID,
		CarrierCode:     m.CarrierCode,
		FreeDays:        m.FreeDays,
		RateDay1To4:     m.RateDay1To4,
		RateDay5To7:     m.RateDay5To7,
		RateDay8Plus:    m.RateDay8Plus,
		ExcludeWeekends: m.ExcludeWeekends,
		ExcludeHolidays: m.ExcludeHolidays,
	}, nil
}

func (r *FreeTimeRepository) GetAccrualByContainer(ctx context.Context, containerID uuid.UUID) (*freetime.Accrual, error) {
	var m models.DemurrageAccrualModel
	err := r.db.conn(ctx).Where("container_id = ?", containerID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, freetime.ErrAccrualNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get demurrage accrual: %w", err)
	}
	return toAccrualEntity(&m), nil
}

func (r *FreeTimeRepository) SaveAccrual(ctx context.Context, a *freetime.Accrual) error {
	now := time.Now()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	m := toAccrualModel(a)
	err := r.db.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "container_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"carrier_code", "free_days", "free_time_start", "free_time_expires_at", "gate_in_at",
			"days_used", "days_over", "total_charge", "status", "invoice_id", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to save demurrage accrual: %w", err)
	}
	return nil
}

func (r *FreeTimeRepository) MarkAccrualBilled(ctx context.Context, id, invoiceID uuid.UUID) error {
	result := r.db.conn(ctx).
		Model(&models.DemurrageAccrualModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(freetime.AccrualBilled),
			"invoice_id": invoiceID,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark accrual billed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return freetime.ErrAccrualNotFound
	}
	return nil
}

func toAccrualModel(a *freetime.Accrual) *models.DemurrageAccrualModel {
	return &models.DemurrageAccrualModel{
		ID:                a.ID,
		ContainerID:       a.ContainerID,
		CarrierCode:       a.CarrierCode,
		FreeDays:          a.FreeDays,
		FreeTimeStart:     a.FreeTimeStart,
		FreeTimeExpiresAt: a.FreeTimeExpiresAt,
		GateInAt:          a.GateInAt,
		DaysUsed:          a.DaysUsed,
		DaysOver:          a.DaysOver,
		TotalCharge:       a.TotalCharge,
		Status:            string(a.Status),
		InvoiceID:         a.InvoiceID,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func toAccrualEntity(m *models.DemurrageAccrualModel) *freetime.Accrual {
	return &freetime.Accrual{
		ID:                m.ID,
		ContainerID:       m.ContainerID,
		CarrierCode:       m.CarrierCode,
		FreeDays:          m.FreeDays,
		FreeTimeStart:     m.FreeTimeStart,
		FreeTimeExpiresAt: m.FreeTimeExpiresAt,
		GateInAt:          m.GateInAt,
		DaysUsed:          m.DaysUsed,
		DaysOver:          m.DaysOver,
		TotalCharge:       m.TotalCharge,
		Status:            freetime.AccrualStatus(m.Status),
		InvoiceID:         m.InvoiceID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
