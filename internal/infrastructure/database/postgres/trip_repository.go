package postgres

import (
	"context"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TripRepository struct {
	db *DB
}

func NewTripRepository(db *DB) trip.Repository {
	return &TripRepository{db: db}
}

func (r *TripRepository) GetTrip(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	return r.getTrip(r.db.conn(ctx), id)
}

func (r *TripRepository) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	return r.getTrip(r.db.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *TripRepository) getTrip(db *gorm.DB, id uuid.UUID) (*trip.Trip, error) {
	var dbModel models.TripModel
	err := db.Where("id = ?", id).First(&dbModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, trip.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return toTripEntity(&dbModel), nil
}

func (r *TripRepository) UpdateTripStatus(ctx context.Context, id uuid.UUID, status trip.TripStatus, completedAt *time.Time) error {
	fields := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if completedAt != nil {
		fields["completed_at"] = completedAt
	}

	result := r.db.conn(ctx).
		Model(&models.TripModel{}).
		Where("id = ?", id).
		Updates(fields)

	if result.Error != nil {
		return fmt.Errorf("failed to update trip status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return trip.ErrTripNotFound
	}

	return nil
}

func (r *TripRepository) ListStops(ctx context.Context, tripID uuid.UUID) ([]*trip.Stop, error) {
	var dbModels []models.StopModel
	err := r.db.conn(ctx).
		Where("trip_id = ?", tripID).
		Order("sequence ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trip stops: %w", err)
	}

	stops := make([]*trip.Stop, len(dbModels))
	for i, m := range dbModels {
		stops[i] = &trip.Stop{
			ID:               m.ID,
			TripID:           m.TripID,
			Sequence:         m.Sequence,
			StopType:         m.StopType,
			ArrivedAt:        m.ArrivedAt,
			DepartedAt:       m.DepartedAt,
			DetentionMinutes: m.DetentionMinutes,
		}
	}
	return stops, nil
}

func toTripEntity(m *models.TripModel) *trip.Trip {
	return &trip.Trip{
		ID:          m.ID,
		TripNumber:  m.TripNumber,
		DriverID:    m.DriverID,
		Status:      trip.TripStatus(m.Status),
		Revenue:     m.Revenue,
		Cost:        m.Cost,
		TotalMiles:  m.TotalMiles,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
