package billing

import (
	"context"
	"errors"
	"time"

	domainBilling "drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChargeResult describes the charge lines written for an order
type ChargeResult struct {
	Lines    []*domainBilling.ChargeLine
	Replaced int64
	Total    decimal.Decimal
	Skipped  bool
}

// GenerateCharges replaces the order's auto-calculated charge lines with a
// fresh set priced from the lane rate and the container's attributes, then
// rewrites the order total. Manual lines are kept and suppress an automatic
// line of the same type.
func (g *Generator) GenerateCharges(ctx context.Context, o *shipment.Order, eventID *uuid.UUID, now time.Time) (*ChargeResult, error) {
	c, sh, err := g.parents(ctx, o)
	if err != nil {
		return nil, err
	}

	rate, err := g.resolveRate(ctx, sh.CustomerID, c.Size, now)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		logger.Warn("No lane rate for order, charges not generated",
			zap.String("order_id", o.ID.String()),
			zap.String("container_size", c.Size),
			zap.String("event", "charges_skipped"),
		)
		return &ChargeResult{Skipped: true}, nil
	}

	existing, err := g.billing.ListChargeLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	var manual []*domainBilling.ChargeLine
	manualTypes := make(map[domainBilling.ChargeType]bool)
	for _, l := range existing {
		if !l.AutoCalculated {
			manual = append(manual, l)
			manualTypes[l.ChargeType] = true
		}
	}

	replaced, err := g.billing.SoftDeleteAutoChargeLines(ctx, o.ID, now)
	if err != nil {
		return nil, err
	}

	var lines []*domainBilling.ChargeLine
	add := func(t domainBilling.ChargeType, desc string, qty, unit decimal.Decimal) {
		if manualTypes[t] {
			return
		}
		amount := qty.Mul(unit).Round(2)
		if !amount.IsPositive() {
			return
		}
		orderID := o.ID
		containerID := c.ID
		lines = append(lines, &domainBilling.ChargeLine{
			ID:             uuid.New(),
			OrderID:        &orderID,
			ContainerID:    &containerID,
			ChargeType:     t,
			Description:    desc,
			Quantity:       qty,
			UnitRate:       unit,
			Amount:         amount,
			AutoCalculated: true,
			IdempotencyKey: chargeKey(o.ID, t),
			SourceEventID:  eventID,
		})
	}

	one := decimal.NewFromInt(1)
	base := rate.BaseRate
	add(domainBilling.ChargeLineHaul, "Line haul "+c.Size+"'", one, base)

	pct := g.policy.FuelSurchargePct
	if rate.FuelSurchargePct != nil {
		pct = *rate.FuelSurchargePct
	}
	add(domainBilling.ChargeFuelSurcharge, "Fuel surcharge "+pct.String()+"%", one, base.Mul(pct).Div(hundred).Round(2))

	if c.IsHazmat {
		add(domainBilling.ChargeHazmat, "Hazmat surcharge", one, pick(rate.HazmatFee, g.policy.HazmatFee))
	}
	if c.IsOverweight {
		add(domainBilling.ChargeOverweight, "Overweight surcharge", one, pick(rate.OverweightFee, g.policy.OverweightFee))
	}
	if c.IsReefer {
		add(domainBilling.ChargeReefer, "Reefer surcharge", one, pick(rate.ReeferFee, g.policy.ReeferFee))
	}

	if len(lines) > 0 {
		if err := g.billing.CreateChargeLines(ctx, lines); err != nil {
			return nil, err
		}
	}

	total := sumLines(manual).Add(sumLines(lines))
	if err := g.shipments.UpdateOrderTotalCharges(ctx, o.ID, total); err != nil {
		return nil, err
	}
	o.TotalCharges = total

	logger.Info("Order charges generated",
		zap.String("order_id", o.ID.String()),
		zap.Int("lines", len(lines)),
		zap.Int64("replaced", replaced),
		zap.String("total_charges", total.StringFixed(2)),
		zap.String("event", "charges_generated"),
	)

	return &ChargeResult{Lines: lines, Replaced: replaced, Total: total}, nil
}

// resolveRate prefers the customer's own lane rate, then the global one, then
// the configured default. It returns nil when none applies.
func (g *Generator) resolveRate(ctx context.Context, customerID *uuid.UUID, size string, asOf time.Time) (*domainBilling.LaneRate, error) {
	if customerID != nil {
		rate, err := g.billing.FindLaneRate(ctx, customerID, size, asOf)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, domainBilling.ErrLaneRateNotFound) {
			return nil, err
		}
	}

	rate, err := g.billing.FindLaneRate(ctx, nil, size, asOf)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, domainBilling.ErrLaneRateNotFound) {
		return nil, err
	}

	if !g.policy.DefaultLineHaulRate.IsPositive() {
		return nil, nil
	}
	logger.Warn("No lane rate on file, using default line haul rate",
		zap.String("container_size", size),
		zap.String("rate", g.policy.DefaultLineHaulRate.StringFixed(2)),
	)
	return &domainBilling.LaneRate{ContainerSize: size, BaseRate: g.policy.DefaultLineHaulRate}, nil
}

func pick(override *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return fallback
}
