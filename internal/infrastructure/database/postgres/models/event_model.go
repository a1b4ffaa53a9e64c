package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AutomationEventModel is a transactional outbox row. Seq is filled by the
// database and is the relay's publish order.
type AutomationEventModel struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key"`
	Seq         int64          `gorm:"type:bigserial;autoIncrement;not null;uniqueIndex"`
	EntityType  string         `gorm:"type:varchar(16);not null"`
	EntityID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action      string         `gorm:"type:varchar(16);not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	OccurredAt  time.Time      `gorm:"type:timestamptz;not null;index"`
	PublishedAt *time.Time     `gorm:"type:timestamptz;index"`
}

func (AutomationEventModel) TableName() string {
	return "automation_events"
}
