package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domainBilling "drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/freetime"
	domainSettlement "drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/testutil/memstore"
	"drayage-tms/internal/usecase/accrual"
	"drayage-tms/internal/usecase/billing"
	"drayage-tms/internal/usecase/propagation"
	"drayage-tms/internal/usecase/settlement"
	appErrors "drayage-tms/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type harness struct {
	ctx    context.Context
	store  *memstore.Store
	engine *Engine
	h      memstore.Hierarchy
	now    time.Time
}

func newHarness(t *testing.T, containers, ordersPer int) *harness {
	t.Helper()
	store := memstore.New()
	customer := uuid.New()
	h := store.SeedHierarchy(&customer, "MSC", containers, ordersPer)
	store.AddLaneRate(domainBilling.LaneRate{
		ID:            uuid.New(),
		CustomerID:    &customer,
		ContainerSize: "40",
		BaseRate:      decimal.NewFromInt(400),
		EffectiveDate: base.AddDate(0, -1, 0),
	})

	graph, err := propagation.NewHierarchy(store)
	require.NoError(t, err)
	cal, err := accrual.NewCalendar(time.UTC, nil)
	require.NoError(t, err)
	calc := accrual.NewCalculator(cal, 5, decimal.NewFromInt(150), 4, decimal.NewFromInt(35))

	hs := &harness{ctx: context.Background(), store: store, h: h, now: base.Add(time.Hour)}
	hs.engine = NewEngine(Deps{
		Tx:        store,
		Shipments: store,
		Trips:     store,
		Outbox:    store,
		Graph:     graph,
		Accruals:  accrual.NewService(store, store, calc),
		Billing: billing.NewGenerator(store, store, store, calc, billing.Policy{
			FuelSurchargePct: decimal.NewFromInt(8),
			InvoiceDueDays:   30,
			Currency:         "USD",
		}),
		Settlements: settlement.NewCalculator(store, store, settlement.Defaults{}),
	}, Options{MaxRetries: 2, RetryBaseDelay: time.Millisecond, BatchSize: 2, Workers: 2}).
		WithClock(func() time.Time { return hs.now })
	return hs
}

func (hs *harness) setOrder(t *testing.T, id uuid.UUID, status shipment.OrderStatus) *Outcome {
	t.Helper()
	out, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: id, Status: status})
	require.NoError(t, err)
	return out
}

func contention() error {
	return fmt.Errorf("%w: deadlock detected", appErrors.ErrLockContention)
}

func TestDispatchThenCompleteInvoicesOrder(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID

	out := hs.setOrder(t, orderID, shipment.OrderDispatched)
	require.Len(t, out.ChargeLines, 2)
	assert.Equal(t, "432.00", hs.store.Order(orderID).TotalCharges.StringFixed(2))
	assert.Equal(t, shipment.LifecyclePickedUp, hs.store.Container(hs.h.Containers[0].ID).LifecycleStatus)
	assert.Equal(t, shipment.ShipmentInProgress, hs.store.Shipment(hs.h.Shipment.ID).Status)

	eventID := uuid.New()
	out, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderCompleted, EventID: eventID})
	require.NoError(t, err)
	assert.Equal(t, eventID, out.EventID)
	require.NotNil(t, out.Invoice)
	assert.True(t, out.InvoiceCreated)
	assert.Equal(t, "432.00", out.Invoice.TotalAmount.StringFixed(2))

	assert.Equal(t, shipment.OrderInvoiced, hs.store.Order(orderID).Status)
	assert.Equal(t, shipment.LifecycleCompleted, hs.store.Container(hs.h.Containers[0].ID).LifecycleStatus)
	sh := hs.store.Shipment(hs.h.Shipment.ID)
	assert.Equal(t, shipment.ShipmentCompleted, sh.Status)
	assert.Equal(t, 1, sh.CompletedOrders)

	invoices := hs.store.Invoices()
	require.Len(t, invoices, 1)
	require.NotNil(t, invoices[0].SourceEventID)
	assert.Equal(t, eventID, *invoices[0].SourceEventID)

	var sawInvoice, sawInvoiced bool
	for _, ev := range out.Events {
		require.NotNil(t, ev.CausedBy)
		assert.Equal(t, eventID, *ev.CausedBy)
		if ev.EntityType == event.EntityInvoice && ev.Action == event.ActionCreated {
			sawInvoice = true
		}
		if ev.EntityType == event.EntityOrder && ev.NewStatus == string(shipment.OrderInvoiced) {
			sawInvoiced = true
		}
	}
	assert.True(t, sawInvoice)
	assert.True(t, sawInvoiced)
}

func TestRedeliveredStatusIsNoop(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.setOrder(t, orderID, shipment.OrderDispatched)
	events := len(hs.store.Events())

	out := hs.setOrder(t, orderID, shipment.OrderDispatched)
	assert.True(t, out.NoOp)
	assert.Len(t, hs.store.AllChargeLines(orderID), 2)
	assert.Len(t, hs.store.Events(), events)
}

func TestCompletingInvoicedOrderIsRejected(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.setOrder(t, orderID, shipment.OrderDispatched)
	hs.setOrder(t, orderID, shipment.OrderCompleted)

	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderCompleted})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
	assert.Len(t, hs.store.Invoices(), 1)
	assert.Len(t, hs.store.InvoiceLines(hs.store.Invoices()[0].ID), 2)
}

func TestInvalidTransitionLeavesStateUntouched(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID

	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderCompleted})
	require.ErrorIs(t, err, shipment.ErrInvalidTransition)
	assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
	assert.Equal(t, shipment.OrderPending, hs.store.Order(orderID).Status)
	assert.Empty(t, hs.store.Events())
}

func TestCommandValidation(t *testing.T) {
	hs := newHarness(t, 1, 1)

	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{Status: shipment.OrderReady})
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))

	_, err = hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: uuid.New(), Status: "LOST"})
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))

	_, err = hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: uuid.New(), Status: shipment.OrderReady})
	assert.Equal(t, appErrors.CodeNotFound, appErrors.CodeOf(err))
	assert.ErrorIs(t, err, shipment.ErrOrderNotFound)
}

func TestFailedReactionRollsBackWholeCascade(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.setOrder(t, orderID, shipment.OrderDispatched)
	events := len(hs.store.Events())

	hs.store.FailOn("CreateInvoiceLineItems", errors.New("disk full"))
	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderCompleted})
	require.Error(t, err)

	assert.Equal(t, shipment.OrderDispatched, hs.store.Order(orderID).Status)
	assert.Equal(t, shipment.LifecyclePickedUp, hs.store.Container(hs.h.Containers[0].ID).LifecycleStatus)
	sh := hs.store.Shipment(hs.h.Shipment.ID)
	assert.Equal(t, shipment.ShipmentInProgress, sh.Status)
	assert.Equal(t, 0, sh.CompletedOrders)
	assert.Empty(t, hs.store.Invoices())
	assert.Len(t, hs.store.Events(), events)
	assert.EqualValues(t, 1, hs.engine.Metrics().Snapshot().MutationsFailed)
}

func TestInconsistentParentAbortsMutation(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.store.RemoveShipment(hs.h.Shipment.ID)

	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderReady})
	require.ErrorIs(t, err, shipment.ErrInconsistentParent)
	assert.Equal(t, appErrors.CodeInconsistentParent, appErrors.CodeOf(err))
	assert.Equal(t, shipment.OrderPending, hs.store.Order(orderID).Status)
}

func TestLockContentionIsRetried(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.store.FailCommits(contention(), contention())

	out := hs.setOrder(t, orderID, shipment.OrderReady)
	assert.False(t, out.NoOp)
	assert.Equal(t, shipment.OrderReady, hs.store.Order(orderID).Status)
	assert.Equal(t, 1, hs.store.Commits())
	assert.EqualValues(t, 2, hs.engine.Metrics().Snapshot().Retries)
}

func TestPersistentContentionSurfacesConflict(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID
	hs.store.FailCommits(contention(), contention(), contention())

	_, err := hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: orderID, Status: shipment.OrderReady})
	require.ErrorIs(t, err, appErrors.ErrLockContention)
	assert.Equal(t, appErrors.CodeConflict, appErrors.CodeOf(err))
	assert.Equal(t, shipment.OrderPending, hs.store.Order(orderID).Status)
	assert.Zero(t, hs.store.Commits())
	assert.EqualValues(t, 1, hs.engine.Metrics().Snapshot().Conflicts)
}

func TestDeleteOrderRecomputesParents(t *testing.T) {
	hs := newHarness(t, 1, 2)
	a, b := hs.h.Orders[0][0].ID, hs.h.Orders[0][1].ID
	hs.setOrder(t, a, shipment.OrderDispatched)
	hs.setOrder(t, a, shipment.OrderCompleted)
	require.Equal(t, shipment.LifecycleDelivered, hs.store.Container(hs.h.Containers[0].ID).LifecycleStatus)

	out, err := hs.engine.DeleteOrder(hs.ctx, OrderDeleteCommand{OrderID: b})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Derived)

	assert.Equal(t, shipment.LifecycleCompleted, hs.store.Container(hs.h.Containers[0].ID).LifecycleStatus)
	sh := hs.store.Shipment(hs.h.Shipment.ID)
	assert.Equal(t, 1, sh.TotalOrders)
	assert.Equal(t, shipment.ShipmentCompleted, sh.Status)

	again, err := hs.engine.DeleteOrder(hs.ctx, OrderDeleteCommand{OrderID: b})
	require.NoError(t, err)
	assert.True(t, again.NoOp)

	_, err = hs.engine.ChangeOrderStatus(hs.ctx, OrderStatusCommand{OrderID: b, Status: shipment.OrderReady})
	assert.ErrorIs(t, err, shipment.ErrOrderDeleted)
}

func TestTripCompletionAccumulatesSettlement(t *testing.T) {
	hs := newHarness(t, 1, 1)
	driverID := uuid.New()
	hs.store.AddPayRate(domainSettlement.PayRate{
		ID:            uuid.New(),
		DriverID:      driverID,
		PayMethod:     domainSettlement.PayFlat,
		Rate:          decimal.NewFromInt(250),
		EffectiveDate: base.AddDate(0, -1, 0),
	})
	var trips []uuid.UUID
	for i := 0; i < 2; i++ {
		tr := trip.Trip{ID: uuid.New(), TripNumber: fmt.Sprintf("TRP-%d", i+1), DriverID: &driverID, Status: trip.StatusInProgress}
		hs.store.AddTrip(tr)
		trips = append(trips, tr.ID)
	}

	for _, id := range trips {
		out, err := hs.engine.ChangeTripStatus(hs.ctx, TripStatusCommand{TripID: id, Status: trip.StatusCompleted})
		require.NoError(t, err)
		require.NotNil(t, out.Settlement)
		hs.now = hs.now.Add(2 * time.Hour)
	}

	periods := hs.store.Settlements(driverID)
	require.Len(t, periods, 1)
	assert.Equal(t, 2, periods[0].TotalTrips)
	assert.Equal(t, "500.00", periods[0].GrossEarnings.StringFixed(2))
	require.NotNil(t, hs.store.Trip(trips[0]).CompletedAt)

	out, err := hs.engine.ChangeTripStatus(hs.ctx, TripStatusCommand{TripID: trips[0], Status: trip.StatusCompleted})
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Equal(t, 2, hs.store.Settlements(driverID)[0].TotalTrips)
}

func TestGateEventsDriveAccrualAndInvoice(t *testing.T) {
	hs := newHarness(t, 1, 1)
	containerID := hs.h.Containers[0].ID
	orderID := hs.h.Orders[0][0].ID

	_, err := hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: containerID, At: base})
	require.NoError(t, err)
	sh := hs.store.Shipment(hs.h.Shipment.ID)
	require.NotNil(t, sh.LastFreeDay)
	assert.True(t, sh.LastFreeDay.Equal(base.AddDate(0, 0, 5)))

	hs.setOrder(t, orderID, shipment.OrderDispatched)

	hs.now = base.AddDate(0, 0, 8)
	_, err = hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: containerID, At: base.AddDate(0, 0, 8)})
	require.NoError(t, err)
	assert.Nil(t, hs.store.Shipment(hs.h.Shipment.ID).LastFreeDay)
	a, ok := hs.store.Accrual(containerID)
	require.True(t, ok)
	assert.Equal(t, freetime.AccrualCalculated, a.Status)

	out := hs.setOrder(t, orderID, shipment.OrderCompleted)
	require.NotNil(t, out.Invoice)
	assert.Equal(t, "882.00", out.Invoice.TotalAmount.StringFixed(2))
	a, _ = hs.store.Accrual(containerID)
	assert.Equal(t, freetime.AccrualBilled, a.Status)

	_, err = hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: uuid.New(), At: base})
	assert.Equal(t, appErrors.CodeNotFound, appErrors.CodeOf(err))
}

func TestRedeliveredGateEventsAfterInvoicingAreNoops(t *testing.T) {
	hs := newHarness(t, 1, 1)
	containerID := hs.h.Containers[0].ID
	orderID := hs.h.Orders[0][0].ID
	gateIn := base.AddDate(0, 0, 10)

	_, err := hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: containerID, At: base})
	require.NoError(t, err)
	hs.now = gateIn
	_, err = hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: containerID, At: gateIn})
	require.NoError(t, err)
	hs.setOrder(t, orderID, shipment.OrderDispatched)
	out := hs.setOrder(t, orderID, shipment.OrderCompleted)
	require.NotNil(t, out.Invoice)

	billed, ok := hs.store.Accrual(containerID)
	require.True(t, ok)
	require.Equal(t, freetime.AccrualBilled, billed.Status)
	require.NotNil(t, billed.InvoiceID)
	lastFreeDay := hs.store.Shipment(hs.h.Shipment.ID).LastFreeDay
	events := len(hs.store.Events())

	hs.now = gateIn.AddDate(0, 0, 2)
	replayOut, err := hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: containerID, At: base})
	require.NoError(t, err)
	assert.True(t, replayOut.NoOp)

	replayIn, err := hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: containerID, At: gateIn})
	require.NoError(t, err)
	assert.True(t, replayIn.NoOp)

	c := hs.store.Container(containerID)
	require.NotNil(t, c.GateInAt)
	assert.True(t, c.GateInAt.Equal(gateIn))
	assert.False(t, c.IsOut())
	assert.Equal(t, lastFreeDay, hs.store.Shipment(hs.h.Shipment.ID).LastFreeDay)

	a, _ := hs.store.Accrual(containerID)
	assert.Equal(t, freetime.AccrualBilled, a.Status)
	require.NotNil(t, a.InvoiceID)
	assert.Equal(t, *billed.InvoiceID, *a.InvoiceID)
	assert.True(t, billed.TotalCharge.Equal(a.TotalCharge))
	assert.Len(t, hs.store.Events(), events)

	report, err := hs.engine.ReevaluateDemurrage(hs.ctx, hs.now)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestNewGateOutOnBilledAccrualIsRejected(t *testing.T) {
	hs := newHarness(t, 1, 1)
	containerID := hs.h.Containers[0].ID
	orderID := hs.h.Orders[0][0].ID

	_, err := hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: containerID, At: base})
	require.NoError(t, err)
	hs.now = base.AddDate(0, 0, 9)
	_, err = hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: containerID, At: hs.now})
	require.NoError(t, err)
	hs.setOrder(t, orderID, shipment.OrderDispatched)
	hs.setOrder(t, orderID, shipment.OrderCompleted)

	_, err = hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: containerID, At: base.Add(time.Hour)})
	require.ErrorIs(t, err, freetime.ErrAccrualBilled)
	assert.Equal(t, appErrors.CodeConflict, appErrors.CodeOf(err))

	c := hs.store.Container(containerID)
	require.NotNil(t, c.GateOutAt)
	assert.True(t, c.GateOutAt.Equal(base))
	a, _ := hs.store.Accrual(containerID)
	assert.Equal(t, freetime.AccrualBilled, a.Status)
}

func TestGateInWithoutGateOutIsRejected(t *testing.T) {
	hs := newHarness(t, 1, 1)

	_, err := hs.engine.RecordGateIn(hs.ctx, GateCommand{ContainerID: hs.h.Containers[0].ID, At: base})
	require.ErrorIs(t, err, shipment.ErrGateOutMissing)
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))
}

func TestReevaluateDemurrageEscalatesOpenContainers(t *testing.T) {
	hs := newHarness(t, 3, 1)
	for _, c := range hs.h.Containers {
		_, err := hs.engine.RecordGateOut(hs.ctx, GateCommand{ContainerID: c.ID, At: base})
		require.NoError(t, err)
	}

	report, err := hs.engine.ReevaluateDemurrage(hs.ctx, base.Add(108*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, report.Escalated)
	for _, c := range hs.h.Containers {
		assert.Equal(t, shipment.DemurrageCritical, hs.store.Container(c.ID).DemurrageStatus)
	}

	report, err = hs.engine.ReevaluateDemurrage(hs.ctx, base.Add(109*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Zero(t, report.Escalated)
}

func TestHandleRoutesMutations(t *testing.T) {
	hs := newHarness(t, 1, 1)
	orderID := hs.h.Orders[0][0].ID

	_, err := hs.engine.Handle(hs.ctx, MutationEvent{Kind: MutationOrderStatus})
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))

	_, err = hs.engine.Handle(hs.ctx, MutationEvent{Kind: "order.archived"})
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))

	out, err := hs.engine.Handle(hs.ctx, MutationEvent{
		Kind:        MutationOrderStatus,
		OrderStatus: &OrderStatusCommand{OrderID: orderID, Status: shipment.OrderReady},
	})
	require.NoError(t, err)
	assert.False(t, out.NoOp)
	assert.Equal(t, shipment.OrderReady, hs.store.Order(orderID).Status)
}
