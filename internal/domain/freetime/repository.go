package freetime

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads carrier rules and persists demurrage accruals
type Repository interface {
	FindRule(ctx context.Context, carrierCode string) (*Rule, error)
	GetAccrualByContainer(ctx context.Context, containerID uuid.UUID) (*Accrual, error)
	// SaveAccrual inserts or replaces the accrual keyed by container.
	SaveAccrual(ctx context.Context, a *Accrual) error
	MarkAccrualBilled(ctx context.Context, id, invoiceID uuid.UUID) error
}
