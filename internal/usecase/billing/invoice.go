package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainBilling "drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceResult describes what GenerateInvoice wrote
type InvoiceResult struct {
	Invoice        *domainBilling.Invoice
	Lines          []*domainBilling.InvoiceLineItem
	Created        bool // a new draft invoice was opened
	DemurrageBill  *freetime.Accrual
	ChassisBilled  []uuid.UUID
	Skipped        bool
	SkippedBecause string
}

// GenerateInvoice bills a completed order: it copies the order's charge lines
// into a draft invoice together with any billable demurrage and the per-diem
// of returned, unbilled chassis of its container, then recomputes the invoice
// totals. A chassis still out is left for a later invoice.
// An order that already has invoice lines is a no-op.
func (g *Generator) GenerateInvoice(ctx context.Context, o *shipment.Order, eventID *uuid.UUID, now time.Time) (*InvoiceResult, error) {
	c, sh, err := g.parents(ctx, o)
	if err != nil {
		return nil, err
	}
	if sh.CustomerID == nil {
		logger.Warn("Shipment has no customer, order not invoiced",
			zap.String("order_id", o.ID.String()),
			zap.String("shipment_id", sh.ID.String()),
			zap.String("event", "invoice_skipped"),
		)
		return &InvoiceResult{Skipped: true, SkippedBecause: "no customer"}, nil
	}

	billed, err := g.billing.HasInvoiceLineForOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if billed {
		return &InvoiceResult{Skipped: true, SkippedBecause: "already invoiced"}, nil
	}

	inv, created, err := g.openInvoice(ctx, o, *sh.CustomerID, eventID, now)
	if errors.Is(err, domainBilling.ErrAlreadyInvoiced) {
		return &InvoiceResult{Skipped: true, SkippedBecause: "already invoiced"}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &InvoiceResult{Invoice: inv, Created: created}

	charges, err := g.billing.ListChargeLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range charges {
		res.Lines = append(res.Lines, g.lineItem(inv, o, l.ContainerID, l.ChargeType, l.Description,
			l.Quantity, l.UnitRate, l.Amount, "charge:"+l.ID.String()))
	}

	a, err := g.accruals.GetAccrualByContainer(ctx, c.ID)
	if err != nil && !errors.Is(err, freetime.ErrAccrualNotFound) {
		return nil, err
	}
	if err == nil && a.Billable() {
		qty := decimal.NewFromInt(int64(a.DaysOver))
		unit := a.TotalCharge
		if a.DaysOver > 0 {
			unit = a.TotalCharge.Div(qty).Round(2)
		}
		desc := fmt.Sprintf("Demurrage %s, %d days over free time", c.ContainerNumber, a.DaysOver)
		res.Lines = append(res.Lines, g.lineItem(inv, o, &c.ID, domainBilling.ChargeDemurrage, desc,
			qty, unit, a.TotalCharge, "demurrage:"+a.ID.String()))
		res.DemurrageBill = a
	}

	usages, err := g.billing.ListBillableChassisUsage(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	var chassisLines []*domainBilling.ChassisUsage
	for _, u := range usages {
		pd := g.calc.PerDiem(u, now)
		if !pd.Amount.IsPositive() {
			continue
		}
		desc := fmt.Sprintf("Chassis per diem %s, %d days over free time", u.ChassisNumber, pd.DaysOver)
		res.Lines = append(res.Lines, g.lineItem(inv, o, &c.ID, domainBilling.ChargeChassisPerDiem, desc,
			decimal.NewFromInt(int64(pd.DaysOver)), pd.Rate, pd.Amount, "per-diem:"+u.ID.String()))
		chassisLines = append(chassisLines, u)
	}

	if len(res.Lines) == 0 {
		logger.Warn("Completed order has nothing to bill",
			zap.String("order_id", o.ID.String()),
			zap.String("invoice_id", inv.ID.String()),
		)
	} else if err := g.billing.CreateInvoiceLineItems(ctx, res.Lines); err != nil {
		return nil, err
	}

	if res.DemurrageBill != nil {
		if err := g.accruals.MarkAccrualBilled(ctx, res.DemurrageBill.ID, inv.ID); err != nil {
			return nil, err
		}
		res.DemurrageBill.Status = freetime.AccrualBilled
		res.DemurrageBill.InvoiceID = &inv.ID
	}
	for _, u := range chassisLines {
		if err := g.billing.MarkChassisUsageBilled(ctx, u.ID, inv.ID); err != nil {
			return nil, err
		}
		res.ChassisBilled = append(res.ChassisBilled, u.ID)
	}

	if err := g.recomputeTotals(ctx, inv); err != nil {
		return nil, err
	}

	logger.Info("Order invoiced",
		zap.String("order_id", o.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("lines", len(res.Lines)),
		zap.String("total_amount", inv.TotalAmount.StringFixed(2)),
		zap.String("event", "order_invoiced"),
	)

	return res, nil
}

func (g *Generator) openInvoice(ctx context.Context, o *shipment.Order, customerID uuid.UUID, eventID *uuid.UUID, now time.Time) (*domainBilling.Invoice, bool, error) {
	inv, err := g.billing.FindDraftInvoiceForOrder(ctx, o.ID)
	if err == nil {
		return inv, false, nil
	}
	if !errors.Is(err, domainBilling.ErrInvoiceNotFound) {
		return nil, false, err
	}

	inv = &domainBilling.Invoice{
		ID:             uuid.New(),
		InvoiceNumber:  invoiceNumber(o, now),
		CustomerID:     customerID,
		OrderID:        o.ID,
		Status:         domainBilling.InvoiceDraft,
		Currency:       g.policy.Currency,
		IssueDate:      now,
		DueDate:        dueDate(now, g.policy.InvoiceDueDays),
		Subtotal:       decimal.Zero,
		TotalAmount:    decimal.Zero,
		AmountPaid:     decimal.Zero,
		BalanceDue:     decimal.Zero,
		IdempotencyKey: "invoice:" + o.ID.String(),
		SourceEventID:  eventID,
	}
	if err := g.billing.CreateInvoice(ctx, inv); err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

func (g *Generator) lineItem(
	inv *domainBilling.Invoice,
	o *shipment.Order,
	containerID *uuid.UUID,
	t domainBilling.ChargeType,
	desc string,
	qty, unit, amount decimal.Decimal,
	key string,
) *domainBilling.InvoiceLineItem {
	orderID := o.ID
	return &domainBilling.InvoiceLineItem{
		ID:             uuid.New(),
		InvoiceID:      inv.ID,
		OrderID:        &orderID,
		OrderNumber:    o.OrderNumber,
		ContainerID:    containerID,
		ChargeType:     t,
		Description:    desc,
		Quantity:       qty,
		UnitRate:       unit,
		Amount:         amount,
		IdempotencyKey: key,
	}
}

func (g *Generator) recomputeTotals(ctx context.Context, inv *domainBilling.Invoice) error {
	items, err := g.billing.ListInvoiceLineItems(ctx, inv.ID)
	if err != nil {
		return err
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount)
	}
	inv.Subtotal = subtotal
	inv.TotalAmount = subtotal
	inv.BalanceDue = subtotal.Sub(inv.AmountPaid)
	return g.billing.UpdateInvoiceTotals(ctx, inv)
}

func invoiceNumber(o *shipment.Order, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(o.ID.String(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102"), suffix)
}
