package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists charge lines, invoices and the rate tables they read
type Repository interface {
	// FindLaneRate returns the newest rate for exactly this customer (nil = global default).
	FindLaneRate(ctx context.Context, customerID *uuid.UUID, containerSize string, asOf time.Time) (*LaneRate, error)

	ListChargeLines(ctx context.Context, orderID uuid.UUID) ([]*ChargeLine, error)
	SoftDeleteAutoChargeLines(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)
	CreateChargeLines(ctx context.Context, lines []*ChargeLine) error

	HasInvoiceLineForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	FindDraftInvoiceForOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	CreateInvoiceLineItems(ctx context.Context, items []*InvoiceLineItem) error
	ListInvoiceLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceLineItem, error)
	UpdateInvoiceTotals(ctx context.Context, inv *Invoice) error

	// ListBillableChassisUsage returns returned chassis usages not yet invoiced.
	ListBillableChassisUsage(ctx context.Context, containerID uuid.UUID) ([]*ChassisUsage, error)
	MarkChassisUsageBilled(ctx context.Context, id, invoiceID uuid.UUID) error
}
