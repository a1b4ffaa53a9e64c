package postgres

import (
	"context"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/infrastructure/database/postgres/models"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) event.Outbox {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Append(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*models.AutomationEventModel, len(events))
	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		rows[i] = &models.AutomationEventModel{
			ID:         e.ID,
			EntityType: string(e.EntityType),
			EntityID:   e.EntityID,
			Action:     string(e.Action),
			Payload:    datatypes.JSON(payload),
			OccurredAt: e.OccurredAt,
		}
	}

	if err := r.db.conn(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}

// ListPending claims unpublished rows with SKIP LOCKED so concurrent relays
// do not publish the same event twice within one transaction. Rows come back
// in seq order; occurred_at ties within a mutation.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]event.Event, error) {
	var rows []models.AutomationEventModel
	err := r.db.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL").
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		var e event.Event
		if err := json.Unmarshal(row.Payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", row.ID, err)
		}
		e.Seq = row.Seq
		events = append(events, e)
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	err := r.db.conn(ctx).
		Model(&models.AutomationEventModel{}).
		Where("id IN ?", ids).
		Update("published_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	return nil
}
