package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drayage-tms/internal/config"
	domainBilling "drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/usecase/accrual"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Policy holds the pricing defaults used when a lane rate leaves a field empty
type Policy struct {
	FuelSurchargePct    decimal.Decimal
	HazmatFee           decimal.Decimal
	OverweightFee       decimal.Decimal
	ReeferFee           decimal.Decimal
	DefaultLineHaulRate decimal.Decimal // zero disables the fallback
	InvoiceDueDays      int
	Currency            string
}

// NewPolicy converts billing configuration into a Policy.
func NewPolicy(cfg config.BillingConfig) Policy {
	return Policy{
		FuelSurchargePct:    decimal.NewFromFloat(cfg.FuelSurchargePct),
		HazmatFee:           decimal.NewFromFloat(cfg.HazmatFee),
		OverweightFee:       decimal.NewFromFloat(cfg.OverweightFee),
		ReeferFee:           decimal.NewFromFloat(cfg.ReeferFee),
		DefaultLineHaulRate: decimal.NewFromFloat(cfg.DefaultLineHaulRate),
		InvoiceDueDays:      cfg.InvoiceDueDays,
		Currency:            cfg.Currency,
	}
}

// Generator turns order transitions into charge lines and invoices.
// Every method runs inside the caller's transaction.
type Generator struct {
	billing   domainBilling.Repository
	shipments shipment.Repository
	accruals  freetime.Repository
	calc      *accrual.Calculator
	policy    Policy
}

// NewGenerator creates a new billing generator
func NewGenerator(
	billingRepo domainBilling.Repository,
	shipmentRepo shipment.Repository,
	accrualRepo freetime.Repository,
	calc *accrual.Calculator,
	policy Policy,
) *Generator {
	return &Generator{
		billing:   billingRepo,
		shipments: shipmentRepo,
		accruals:  accrualRepo,
		calc:      calc,
		policy:    policy,
	}
}

// ShouldGenerateCharges reports whether moving an order from one status to
// another prices its charge lines.
func ShouldGenerateCharges(from, to shipment.OrderStatus) bool {
	return to == shipment.OrderDispatched && from != shipment.OrderDispatched
}

// ShouldInvoice reports whether moving an order from one status to another
// bills it.
func ShouldInvoice(from, to shipment.OrderStatus) bool {
	if to != shipment.OrderCompleted && to != shipment.OrderDelivered {
		return false
	}
	switch from {
	case shipment.OrderCompleted, shipment.OrderDelivered, shipment.OrderInvoiced:
		return false
	}
	return true
}

func chargeKey(orderID uuid.UUID, t domainBilling.ChargeType) string {
	return fmt.Sprintf("%s:%s", orderID, t)
}

func (g *Generator) parents(ctx context.Context, o *shipment.Order) (*shipment.Container, *shipment.Shipment, error) {
	c, err := g.shipments.GetContainer(ctx, o.ContainerID)
	if errors.Is(err, shipment.ErrContainerNotFound) {
		return nil, nil, fmt.Errorf("%w: container %s of order %s", shipment.ErrInconsistentParent, o.ContainerID, o.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	sh, err := g.shipments.GetShipment(ctx, o.ShipmentID)
	if errors.Is(err, shipment.ErrShipmentNotFound) {
		return nil, nil, fmt.Errorf("%w: shipment %s of order %s", shipment.ErrInconsistentParent, o.ShipmentID, o.ID)
	}
	if err != nil {
		return nil, nil, err
	}
	return c, sh, nil
}

func sumLines(lines []*domainBilling.ChargeLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func dueDate(issued time.Time, days int) time.Time {
	return issued.AddDate(0, 0, days)
}
