package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drayage-tms/internal/config"
	domainSettlement "drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	week = 7 * 24 * time.Hour

	// maxRollForward bounds how many weeks ahead a trip may land when its own
	// period has already been approved.
	maxRollForward = 4
)

var (
	hundred = decimal.NewFromInt(100)
	sixty   = decimal.NewFromInt(60)
)

// Defaults is the pay rate used for drivers with none on file.
// An empty PayMethod disables the fallback.
type Defaults struct {
	PayMethod          domainSettlement.PayMethod
	PayRate            decimal.Decimal
	FreeWaitingMinutes int
	WaitingRate        decimal.Decimal
}

// NewDefaults converts settlement configuration into Defaults.
func NewDefaults(cfg config.SettlementConfig) Defaults {
	return Defaults{
		PayMethod:          domainSettlement.PayMethod(cfg.DefaultPayMethod),
		PayRate:            decimal.NewFromFloat(cfg.DefaultPayRate),
		FreeWaitingMinutes: cfg.DefaultFreeWaitingMinutes,
		WaitingRate:        decimal.NewFromFloat(cfg.DefaultWaitingRate),
	}
}

// Result describes what SettleTrip wrote
type Result struct {
	Settlement *domainSettlement.DriverSettlement
	Lines      []*domainSettlement.LineItem
	Created    bool // a new settlement period was opened
	Skipped    bool
}

// Calculator books completed trips onto drivers' weekly settlements.
// It runs inside the caller's transaction.
type Calculator struct {
	settlements domainSettlement.Repository
	trips       trip.Repository
	defaults    Defaults
}

// NewCalculator creates a new settlement calculator
func NewCalculator(settlements domainSettlement.Repository, trips trip.Repository, defaults Defaults) *Calculator {
	return &Calculator{settlements: settlements, trips: trips, defaults: defaults}
}

// SettleTrip adds a completed trip's pay lines to its driver's open weekly
// settlement and recomputes the period totals. A trip that already has lines
// is a no-op.
func (c *Calculator) SettleTrip(ctx context.Context, t *trip.Trip, eventID *uuid.UUID, now time.Time) (*Result, error) {
	if t.DriverID == nil {
		logger.Warn("Completed trip has no driver, not settled",
			zap.String("trip_id", t.ID.String()),
			zap.String("event", "settlement_skipped"),
		)
		return &Result{Skipped: true}, nil
	}
	driverID := *t.DriverID

	settled, err := c.settlements.HasLineItemsForTrip(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if settled {
		return &Result{Skipped: true}, nil
	}

	completedAt := now
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}

	rate, err := c.payRate(ctx, driverID, completedAt)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		logger.Warn("No pay rate for driver, trip not settled",
			zap.String("driver_id", driverID.String()),
			zap.String("trip_id", t.ID.String()),
			zap.String("event", "settlement_skipped"),
		)
		return &Result{Skipped: true}, nil
	}

	stops, err := c.trips.ListStops(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	base, err := BasePay(rate, t)
	if err != nil {
		return nil, err
	}

	ds, created, err := c.openPeriod(ctx, driverID, WeekStart(completedAt))
	if err != nil {
		return nil, err
	}

	tripID := t.ID
	line := func(kind domainSettlement.LineKind, desc string, qty, unit, amount, miles decimal.Decimal) *domainSettlement.LineItem {
		return &domainSettlement.LineItem{
			ID:             uuid.New(),
			SettlementID:   ds.ID,
			TripID:         &tripID,
			Kind:           kind,
			Description:    desc,
			Quantity:       qty,
			Rate:           unit,
			Amount:         amount,
			Miles:          miles,
			IdempotencyKey: fmt.Sprintf("%s:%s", t.ID, kind),
			SourceEventID:  eventID,
		}
	}

	lines := []*domainSettlement.LineItem{
		line(domainSettlement.LineBasePay, fmt.Sprintf("Trip %s (%s)", t.TripNumber, rate.PayMethod),
			base.Quantity, rate.Rate, base.Amount, t.TotalMiles),
	}
	if wait := WaitingPay(rate, stops); wait.Amount.IsPositive() {
		lines = append(lines, line(domainSettlement.LineWaitingPay,
			fmt.Sprintf("Waiting time trip %s", t.TripNumber),
			wait.Hours, rate.WaitingRatePerHour, wait.Amount, decimal.Zero))
	}

	if err := c.settlements.CreateLineItems(ctx, lines); err != nil {
		return nil, err
	}
	if err := c.recomputeTotals(ctx, ds); err != nil {
		return nil, err
	}

	logger.Info("Trip settled",
		zap.String("trip_id", t.ID.String()),
		zap.String("driver_id", driverID.String()),
		zap.String("settlement_id", ds.ID.String()),
		zap.String("gross_earnings", ds.GrossEarnings.StringFixed(2)),
		zap.Int("total_trips", ds.TotalTrips),
		zap.String("event", "trip_settled"),
	)

	return &Result{Settlement: ds, Lines: lines, Created: created}, nil
}

func (c *Calculator) payRate(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*domainSettlement.PayRate, error) {
	rate, err := c.settlements.FindActivePayRate(ctx, driverID, asOf)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, domainSettlement.ErrPayRateNotFound) {
		return nil, err
	}
	if c.defaults.PayMethod == "" {
		return nil, nil
	}
	logger.Warn("No pay rate on file, using default",
		zap.String("driver_id", driverID.String()),
		zap.String("pay_method", string(c.defaults.PayMethod)),
	)
	return &domainSettlement.PayRate{
		DriverID:           driverID,
		PayMethod:          c.defaults.PayMethod,
		Rate:               c.defaults.PayRate,
		WaitingRatePerHour: c.defaults.WaitingRate,
		FreeWaitingMinutes: c.defaults.FreeWaitingMinutes,
	}, nil
}

// openPeriod returns the DRAFT settlement for the week starting at start,
// creating it when missing. A period past DRAFT pushes the trip into the
// following week.
func (c *Calculator) openPeriod(ctx context.Context, driverID uuid.UUID, start time.Time) (*domainSettlement.DriverSettlement, bool, error) {
	for i := 0; i <= maxRollForward; i++ {
		ds, err := c.settlements.FindSettlementForUpdate(ctx, driverID, start)
		if errors.Is(err, domainSettlement.ErrSettlementNotFound) {
			ds = &domainSettlement.DriverSettlement{
				ID:            uuid.New(),
				DriverID:      driverID,
				PeriodStart:   start,
				PeriodEnd:     start.Add(week),
				Status:        domainSettlement.StatusDraft,
				GrossEarnings: decimal.Zero,
				Deductions:    decimal.Zero,
				NetPay:        decimal.Zero,
				TotalMiles:    decimal.Zero,
			}
			if err := c.settlements.CreateSettlement(ctx, ds); err != nil {
				return nil, false, err
			}
			return ds, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		if ds.Status == domainSettlement.StatusDraft {
			return ds, false, nil
		}

		logger.Debug("Settlement period locked, rolling forward",
			zap.String("driver_id", driverID.String()),
			zap.Time("period_start", start),
			zap.String("status", string(ds.Status)),
		)
		start = start.Add(week)
	}
	return nil, false, fmt.Errorf("%w: driver %s has no draft period within %d weeks",
		domainSettlement.ErrSettlementPeriodLocked, driverID, maxRollForward)
}

// recomputeTotals rebuilds the period totals from all of its line items.
func (c *Calculator) recomputeTotals(ctx context.Context, ds *domainSettlement.DriverSettlement) error {
	items, err := c.settlements.ListLineItems(ctx, ds.ID)
	if err != nil {
		return err
	}
	Summarize(ds, items)
	return c.settlements.UpdateSettlementTotals(ctx, ds)
}

// Summarize sets the settlement totals from its line items.
func Summarize(ds *domainSettlement.DriverSettlement, items []*domainSettlement.LineItem) {
	gross, deductions, miles := decimal.Zero, decimal.Zero, decimal.Zero
	trips := make(map[uuid.UUID]bool)
	for _, it := range items {
		if it.Kind.IsEarning() {
			gross = gross.Add(it.Amount)
		} else {
			deductions = deductions.Add(it.Amount)
		}
		if it.Kind == domainSettlement.LineBasePay {
			miles = miles.Add(it.Miles)
		}
		if it.TripID != nil && it.Kind.IsEarning() {
			trips[*it.TripID] = true
		}
	}
	ds.GrossEarnings = gross
	ds.Deductions = deductions
	ds.NetPay = gross.Sub(deductions)
	ds.TotalMiles = miles
	ds.TotalTrips = len(trips)
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
