// Package automation applies CRUD mutations together with every rule they
// trigger: derived-state propagation, charge lines, invoices, driver
// settlements and demurrage accruals. Each mutation and all of its reactions
// commit or roll back as one transaction.
package automation

import (
	"context"
	"time"

	"drayage-tms/internal/config"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/transaction"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/logger"
	"drayage-tms/internal/usecase/accrual"
	"drayage-tms/internal/usecase/billing"
	"drayage-tms/internal/usecase/propagation"
	"drayage-tms/internal/usecase/settlement"
	appErrors "drayage-tms/pkg/errors"
	"drayage-tms/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are the engine's collaborators
type Deps struct {
	Tx          transaction.Manager
	Shipments   shipment.Repository
	Trips       trip.Repository
	Outbox      event.Outbox
	Graph       *propagation.Graph
	Accruals    *accrual.Service
	Billing     *billing.Generator
	Settlements *settlement.Calculator
	Metrics     *MetricsTracker
}

type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	BatchSize      int // containers per re-evaluation page
	Workers        int // concurrent re-evaluations
}

// OptionsFromConfig reads engine and demurrage settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRetries:     cfg.Engine.MaxRetries,
		RetryBaseDelay: cfg.Engine.RetryBaseDelay,
		BatchSize:      cfg.Demurrage.BatchSize,
		Workers:        cfg.Demurrage.Workers,
	}
}

// Engine implements the automation use cases
type Engine struct {
	deps    Deps
	opts    Options
	metrics *MetricsTracker
	now     func() time.Time
}

// NewEngine creates a new automation engine
func NewEngine(deps Deps, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetricsTracker()
	}
	return &Engine{
		deps:    deps,
		opts:    opts,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithClock replaces the engine's wall clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Metrics() *MetricsTracker {
	return e.metrics
}

// apply runs fn and appends its events to the outbox in one transaction,
// retrying the whole unit on lock contention.
func (e *Engine) apply(ctx context.Context, kind string, eventID uuid.UUID, fn func(ctx context.Context, out *Outcome) error) (*Outcome, error) {
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	log := logger.WithEvent(eventID, kind)
	start := time.Now()

	var out *Outcome
	err := e.retry(ctx, kind, func(ctx context.Context) error {
		out = &Outcome{EventID: eventID}
		return e.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := fn(ctx, out); err != nil {
				return err
			}
			if len(out.Events) == 0 {
				return nil
			}
			return e.deps.Outbox.Append(ctx, out.Events)
		})
	})
	if err != nil {
		err = translate(err)
		e.metrics.Update(func(m *EngineMetrics) { m.MutationsFailed++ })
		if isClientError(err) {
			log.Warn("Mutation rejected", zap.Error(err))
		} else {
			log.Error("Mutation rolled back", zap.Error(err))
		}
		return nil, err
	}

	e.metrics.recordApplied(out, time.Since(start))
	log.Info("Mutation applied",
		zap.Bool("noop", out.NoOp),
		zap.Int("derived_writes", len(out.Derived)),
		zap.Int("charge_lines", len(out.ChargeLines)),
		zap.Bool("invoice_created", out.InvoiceCreated),
		zap.Int("settlement_lines", len(out.SettlementLines)),
		zap.Int("events", len(out.Events)),
		zap.String("event", kind),
	)
	return out, nil
}

func (e *Engine) propagate(ctx context.Context, out *Outcome, at time.Time, seeds ...propagation.Node) error {
	changes, err := e.deps.Graph.Propagate(ctx, seeds...)
	if err != nil {
		return err
	}
	out.addDerived(changes, at)
	return nil
}

func validate(cmd interface{}) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return appErrors.NewAppError(appErrors.CodeValidation, "Invalid input", err)
	}
	return nil
}

// ChangeOrderStatus moves an order to a new status and applies every reaction:
// derived container and shipment state, charge lines on dispatch, and the
// invoice plus INVOICED status on completion. Re-delivering the current status
// is a no-op.
func (e *Engine) ChangeOrderStatus(ctx context.Context, cmd OrderStatusCommand) (*Outcome, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}

	return e.apply(ctx, "order_status_changed", cmd.EventID, func(ctx context.Context, out *Outcome) error {
		now := e.now()
		o, err := e.deps.Shipments.GetOrderForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.DeletedAt != nil {
			return shipment.ErrOrderDeleted
		}

		from := o.Status
		if from == cmd.Status {
			out.NoOp = true
			return nil
		}
		if err := ValidateOrderTransition(from, cmd.Status); err != nil {
			return err
		}

		if err := e.deps.Shipments.UpdateOrderStatus(ctx, o.ID, cmd.Status); err != nil {
			return err
		}
		o.Status = cmd.Status
		out.emit(event.EntityOrder, o.ID, event.ActionStatusChanged, string(o.Status), now)

		if err := e.propagate(ctx, out, now, propagation.Node{Kind: propagation.KindOrder, ID: o.ID}); err != nil {
			return err
		}
		return e.reactToOrder(ctx, out, o, from, now)
	})
}

func (e *Engine) reactToOrder(ctx context.Context, out *Outcome, o *shipment.Order, from shipment.OrderStatus, now time.Time) error {
	if billing.ShouldGenerateCharges(from, o.Status) {
		res, err := e.deps.Billing.GenerateCharges(ctx, o, &out.EventID, now)
		if err != nil {
			return err
		}
		if !res.Skipped {
			out.ChargeLines = res.Lines
			for _, l := range res.Lines {
				out.emit(event.EntityChargeLine, l.ID, event.ActionCreated, string(l.ChargeType), now)
			}
			out.emit(event.EntityOrder, o.ID, event.ActionUpdated, string(o.Status), now)
		}
	}

	if !billing.ShouldInvoice(from, o.Status) {
		return nil
	}

	res, err := e.deps.Billing.GenerateInvoice(ctx, o, &out.EventID, now)
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}
	out.Invoice = res.Invoice
	out.InvoiceCreated = res.Created
	out.InvoiceLines = res.Lines
	action := event.ActionUpdated
	if res.Created {
		action = event.ActionCreated
	}
	out.emit(event.EntityInvoice, res.Invoice.ID, action, string(res.Invoice.Status), now)

	if err := e.deps.Shipments.UpdateOrderStatus(ctx, o.ID, shipment.OrderInvoiced); err != nil {
		return err
	}
	o.Status = shipment.OrderInvoiced
	out.emit(event.EntityOrder, o.ID, event.ActionStatusChanged, string(o.Status), now)

	return e.propagate(ctx, out, now, propagation.Node{Kind: propagation.KindOrder, ID: o.ID})
}

// DeleteOrder soft-deletes an order and recomputes its parents without it.
func (e *Engine) DeleteOrder(ctx context.Context, cmd OrderDeleteCommand) (*Outcome, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}

	return e.apply(ctx, "order_deleted", cmd.EventID, func(ctx context.Context, out *Outcome) error {
		now := e.now()
		o, err := e.deps.Shipments.GetOrderForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.DeletedAt != nil {
			out.NoOp = true
			return nil
		}

		if err := e.deps.Shipments.SoftDeleteOrder(ctx, o.ID, now); err != nil {
			return err
		}
		out.emit(event.EntityOrder, o.ID, event.ActionDeleted, string(o.Status), now)

		return e.propagate(ctx, out, now, propagation.Node{Kind: propagation.KindOrder, ID: o.ID})
	})
}

// ChangeTripStatus moves a trip to a new status. Completing a trip books it
// onto the driver's open weekly settlement.
func (e *Engine) ChangeTripStatus(ctx context.Context, cmd TripStatusCommand) (*Outcome, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}

	return e.apply(ctx, "trip_status_changed", cmd.EventID, func(ctx context.Context, out *Outcome) error {
		now := e.now()
		t, err := e.deps.Trips.GetTripForUpdate(ctx, cmd.TripID)
		if err != nil {
			return err
		}

		from := t.Status
		if from == cmd.Status {
			out.NoOp = true
			return nil
		}
		if err := ValidateTripTransition(from, cmd.Status); err != nil {
			return err
		}

		var completedAt *time.Time
		if cmd.Status == trip.StatusCompleted {
			completedAt = &now
		}
		if err := e.deps.Trips.UpdateTripStatus(ctx, t.ID, cmd.Status, completedAt); err != nil {
			return err
		}
		t.Status = cmd.Status
		t.CompletedAt = completedAt
		out.emit(event.EntityTrip, t.ID, event.ActionStatusChanged, string(t.Status), now)

		if t.Status != trip.StatusCompleted {
			return nil
		}

		res, err := e.deps.Settlements.SettleTrip(ctx, t, &out.EventID, now)
		if err != nil {
			return err
		}
		if res.Skipped {
			return nil
		}
		out.Settlement = res.Settlement
		out.SettlementLines = res.Lines
		action := event.ActionUpdated
		if res.Created {
			action = event.ActionCreated
		}
		out.emit(event.EntitySettlement, res.Settlement.ID, action, string(res.Settlement.Status), now)
		return nil
	})
}

// RecordGateOut starts a container's free-time clock.
func (e *Engine) RecordGateOut(ctx context.Context, cmd GateCommand) (*Outcome, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}
	return e.apply(ctx, "container_gate_out", cmd.EventID, func(ctx context.Context, out *Outcome) error {
		now := e.now()
		res, err := e.deps.Accruals.GateOut(ctx, cmd.ContainerID, cmd.At, now)
		if err != nil {
			return err
		}
		return e.afterGate(ctx, out, res, now)
	})
}

// RecordGateIn stops a container's free-time clock and finalizes its accrual.
func (e *Engine) RecordGateIn(ctx context.Context, cmd GateCommand) (*Outcome, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}
	return e.apply(ctx, "container_gate_in", cmd.EventID, func(ctx context.Context, out *Outcome) error {
		now := e.now()
		res, err := e.deps.Accruals.GateIn(ctx, cmd.ContainerID, cmd.At)
		if err != nil {
			return err
		}
		return e.afterGate(ctx, out, res, now)
	})
}

func (e *Engine) afterGate(ctx context.Context, out *Outcome, res *accrual.GateResult, now time.Time) error {
	if !res.Changed {
		out.NoOp = true
		return nil
	}
	c := res.Container
	out.emit(event.EntityContainer, c.ID, event.ActionUpdated, string(c.DemurrageStatus), now)
	return e.propagate(ctx, out, now, propagation.Node{Kind: propagation.KindContainer, ID: c.ID})
}

// Handle dispatches a bus-delivered mutation to its operation.
func (e *Engine) Handle(ctx context.Context, m MutationEvent) (*Outcome, error) {
	missing := appErrors.NewAppError(appErrors.CodeValidation, "Mutation payload missing for "+string(m.Kind), appErrors.ErrInvalidInput)

	switch m.Kind {
	case MutationOrderStatus:
		if m.OrderStatus == nil {
			return nil, missing
		}
		return e.ChangeOrderStatus(ctx, *m.OrderStatus)
	case MutationOrderDelete:
		if m.OrderDelete == nil {
			return nil, missing
		}
		return e.DeleteOrder(ctx, *m.OrderDelete)
	case MutationTripStatus:
		if m.TripStatus == nil {
			return nil, missing
		}
		return e.ChangeTripStatus(ctx, *m.TripStatus)
	case MutationGateOut, MutationGateIn:
		if m.Gate == nil {
			return nil, missing
		}
		if m.Kind == MutationGateOut {
			return e.RecordGateOut(ctx, *m.Gate)
		}
		return e.RecordGateIn(ctx, *m.Gate)
	default:
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Unknown mutation kind "+string(m.Kind), appErrors.ErrInvalidInput)
	}
}
