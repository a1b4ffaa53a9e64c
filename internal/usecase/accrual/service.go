package accrual

import (
	"context"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/logger"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service applies gate events and wall-clock re-evaluation to a container's
// free-time fields and its demurrage accrual. It runs inside the caller's
// transaction.
type Service struct {
	shipments shipment.Repository
	rules     freetime.Repository
	calc      *Calculator
}

func NewService(shipments shipment.Repository, rules freetime.Repository, calc *Calculator) *Service {
	return &Service{shipments: shipments, rules: rules, calc: calc}
}

// GateResult is the container state after a gate event.
type GateResult struct {
	Container *shipment.Container
	Accrual   *freetime.Accrual
	Changed   bool
}

func (s *Service) Calculator() *Calculator {
	return s.calc
}

// RuleFor returns the carrier rule for the container's shipment, or the
// default rule when the carrier has none on file.
func (s *Service) RuleFor(ctx context.Context, shipmentID uuid.UUID) (*freetime.Rule, error) {
	sh, err := s.shipments.GetShipment(ctx, shipmentID)
	if errors.Is(err, shipment.ErrShipmentNotFound) {
		return nil, fmt.Errorf("%w: shipment %s", shipment.ErrInconsistentParent, shipmentID)
	}
	if err != nil {
		return nil, err
	}

	rule, err := s.rules.FindRule(ctx, sh.CarrierCode)
	if errors.Is(err, freetime.ErrRuleNotFound) {
		logger.Warn("No free time rule for carrier, using default",
			zap.String("carrier_code", sh.CarrierCode),
			zap.String("shipment_id", shipmentID.String()),
		)
		return s.calc.DefaultRule(sh.CarrierCode), nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// GateOut starts the free-time clock and opens the accrual. Redelivering the
// recorded gate-out is a no-op, even after gate-in. A different gate-out time
// is refused once the accrual has been billed.
func (s *Service) GateOut(ctx context.Context, containerID uuid.UUID, at, now time.Time) (*GateResult, error) {
	c, err := s.shipments.GetContainerForUpdate(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if c.GateOutAt != nil && c.GateOutAt.Equal(at) {
		return &GateResult{Container: c}, nil
	}

	a, err := s.loadAccrual(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if a.Status == freetime.AccrualBilled {
		return nil, fmt.Errorf("%w: container %s", freetime.ErrAccrualBilled, containerID)
	}

	rule, err := s.RuleFor(ctx, c.ShipmentID)
	if err != nil {
		return nil, err
	}

	est := s.calc.Estimate(at, now, rule)
	gateOut, expires := at, est.ExpiresAt
	version := c.Version
	c.GateOutAt = &gateOut
	c.GateInAt = nil
	c.FreeTimeExpiresAt = &expires
	c.DemurrageStatus = est.Status
	c.EstimatedCharge = est.Charge
	if err := s.shipments.UpdateContainerFreeTime(ctx, c, version); err != nil {
		return nil, err
	}

	a.CarrierCode = rule.CarrierCode
	a.FreeDays = rule.FreeDays
	a.FreeTimeStart = at
	a.FreeTimeExpiresAt = expires
	a.GateInAt = nil
	a.DaysUsed = est.DaysUsed
	a.DaysOver = est.DaysOver
	a.TotalCharge = est.Charge
	a.Status = freetime.AccrualOpen
	a.InvoiceID = nil
	if err := s.rules.SaveAccrual(ctx, a); err != nil {
		return nil, err
	}

	return &GateResult{Container: c, Accrual: a, Changed: true}, nil
}

// GateIn stops the clock and finalizes the accrual as CLOSED or CALCULATED.
func (s *Service) GateIn(ctx context.Context, containerID uuid.UUID, at time.Time) (*GateResult, error) {
	c, err := s.shipments.GetContainerForUpdate(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if c.GateOutAt == nil {
		return nil, shipment.ErrGateOutMissing
	}
	if at.Before(*c.GateOutAt) {
		return nil, shipment.ErrGateInBeforeOut
	}
	if c.GateInAt != nil && c.GateInAt.Equal(at) {
		return &GateResult{Container: c}, nil
	}

	rule, err := s.RuleFor(ctx, c.ShipmentID)
	if err != nil {
		return nil, err
	}

	closing := s.calc.Close(*c.GateOutAt, at, rule)
	gateIn, expires := at, closing.ExpiresAt
	version := c.Version
	c.GateInAt = &gateIn
	c.FreeTimeExpiresAt = &expires
	c.DemurrageStatus = closing.Demurrage
	c.EstimatedCharge = closing.TotalCharge
	if err := s.shipments.UpdateContainerFreeTime(ctx, c, version); err != nil {
		return nil, err
	}

	a, err := s.loadAccrual(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if a.Status == freetime.AccrualBilled {
		return &GateResult{Container: c, Accrual: a, Changed: true}, nil
	}
	a.CarrierCode = rule.CarrierCode
	a.FreeDays = rule.FreeDays
	a.FreeTimeStart = *c.GateOutAt
	a.FreeTimeExpiresAt = expires
	a.GateInAt = &gateIn
	a.DaysUsed = closing.DaysUsed
	a.DaysOver = closing.DaysOver
	a.TotalCharge = closing.TotalCharge
	a.Status = closing.Status
	if err := s.rules.SaveAccrual(ctx, a); err != nil {
		return nil, err
	}

	logger.Info("Demurrage accrual closed",
		zap.String("container_id", containerID.String()),
		zap.String("status", string(a.Status)),
		zap.Int("days_over", a.DaysOver),
		zap.String("total_charge", a.TotalCharge.StringFixed(2)),
	)

	return &GateResult{Container: c, Accrual: a, Changed: true}, nil
}

// Reevaluate advances the demurrage status and estimate of a container that
// is still out. The status never moves to a less severe value while the
// container stays out. The write is guarded by the container's version and
// returns shipment.ErrVersionConflict if a gate event got there first.
func (s *Service) Reevaluate(ctx context.Context, c *shipment.Container, now time.Time) (bool, error) {
	if !c.IsOut() {
		return false, nil
	}

	rule, err := s.RuleFor(ctx, c.ShipmentID)
	if err != nil {
		return false, err
	}

	est := s.calc.Estimate(*c.GateOutAt, now, rule)
	next := est.Status
	if next.Rank() < c.DemurrageStatus.Rank() {
		next = c.DemurrageStatus
	}
	if next == c.DemurrageStatus && est.Charge.Equal(c.EstimatedCharge) {
		return false, nil
	}

	version := c.Version
	expires := est.ExpiresAt
	c.FreeTimeExpiresAt = &expires
	c.DemurrageStatus = next
	c.EstimatedCharge = est.Charge
	if err := s.shipments.UpdateContainerFreeTime(ctx, c, version); err != nil {
		return false, err
	}

	a, err := s.rules.GetAccrualByContainer(ctx, c.ID)
	if errors.Is(err, freetime.ErrAccrualNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if a.Status != freetime.AccrualOpen {
		return true, nil
	}
	a.DaysUsed = est.DaysUsed
	a.DaysOver = est.DaysOver
	a.TotalCharge = est.Charge
	if err := s.rules.SaveAccrual(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) loadAccrual(ctx context.Context, containerID uuid.UUID) (*freetime.Accrual, error) {
	a, err := s.rules.GetAccrualByContainer(ctx, containerID)
	if errors.Is(err, freetime.ErrAccrualNotFound) {
		return &freetime.Accrual{ContainerID: containerID}, nil
	}
	return a, err
}
