// Package memstore is an in-memory implementation of every repository port
// plus a transaction manager that rolls back on error. Transactions are
// serialized, which gives tests the effect of row locks without a database.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type txKey struct{}

type data struct {
	shipments    map[uuid.UUID]shipment.Shipment
	containers   map[uuid.UUID]shipment.Container
	orders       map[uuid.UUID]shipment.Order
	trips        map[uuid.UUID]trip.Trip
	stops        map[uuid.UUID][]trip.Stop
	laneRates    []billing.LaneRate
	chargeLines  []billing.ChargeLine
	invoices     []billing.Invoice
	invoiceLines []billing.InvoiceLineItem
	chassis      []billing.ChassisUsage
	rules        map[string]freetime.Rule
	accruals     map[uuid.UUID]freetime.Accrual
	payRates     []settlement.PayRate
	settlements  []settlement.DriverSettlement
	settleLines  []settlement.LineItem
	events       []event.Event
}

func newData() *data {
	return &data{
		shipments:  make(map[uuid.UUID]shipment.Shipment),
		containers: make(map[uuid.UUID]shipment.Container),
		orders:     make(map[uuid.UUID]shipment.Order),
		trips:      make(map[uuid.UUID]trip.Trip),
		stops:      make(map[uuid.UUID][]trip.Stop),
		rules:      make(map[string]freetime.Rule),
		accruals:   make(map[uuid.UUID]freetime.Accrual),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.shipments {
		c.shipments[k] = v
	}
	for k, v := range d.containers {
		c.containers[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.trips {
		c.trips[k] = v
	}
	for k, v := range d.stops {
		c.stops[k] = append([]trip.Stop(nil), v...)
	}
	for k, v := range d.rules {
		c.rules[k] = v
	}
	for k, v := range d.accruals {
		c.accruals[k] = v
	}
	c.laneRates = append(c.laneRates, d.laneRates...)
	c.chargeLines = append(c.chargeLines, d.chargeLines...)
	c.invoices = append(c.invoices, d.invoices...)
	c.invoiceLines = append(c.invoiceLines, d.invoiceLines...)
	c.chassis = append(c.chassis, d.chassis...)
	c.payRates = append(c.payRates, d.payRates...)
	c.settlements = append(c.settlements, d.settlements...)
	c.settleLines = append(c.settleLines, d.settleLines...)
	c.events = append(c.events, d.events...)
	return c
}

// Store satisfies shipment, trip, billing, settlement and freetime repositories,
// the event outbox and transaction.Manager.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *data

	failures  map[string]error
	txErrors  []error
	txCommits int
	// seq survives rollback, like a database sequence.
	seq int64
}

func New() *Store {
	return &Store{d: newData(), failures: make(map[string]error)}
}

// FailOn makes the next call to the named repository method return err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// FailCommits makes the next len(errs) outermost transactions roll back with
// the given errors after fn succeeds, in order.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErrors = append(s.txErrors, errs...)
}

// Commits counts successfully committed outermost transactions.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCommits
}

func (s *Store) injected(method string) error {
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, true))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil && len(s.txErrors) > 0 {
		err = s.txErrors[0]
		s.txErrors = s.txErrors[1:]
	}
	if err != nil {
		s.d = snapshot
		return err
	}
	s.txCommits++
	return nil
}

// Seed helpers

func (s *Store) AddShipment(sh shipment.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.shipments[sh.ID] = sh
}

func (s *Store) AddContainer(c shipment.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.containers[c.ID] = c
}

func (s *Store) AddOrder(o shipment.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.orders[o.ID] = o
}

func (s *Store) AddTrip(t trip.Trip, stops ...trip.Stop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.trips[t.ID] = t
	s.d.stops[t.ID] = append(s.d.stops[t.ID], stops...)
}

func (s *Store) AddLaneRate(r billing.LaneRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.laneRates = append(s.d.laneRates, r)
}

func (s *Store) AddChargeLine(l billing.ChargeLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.chargeLines = append(s.d.chargeLines, l)
}

func (s *Store) AddChassisUsage(u billing.ChassisUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.chassis = append(s.d.chassis, u)
}

// ReturnChassis records the return of a chassis usage, as the equipment
// service would.
func (s *Store) ReturnChassis(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.d.chassis {
		if s.d.chassis[i].ID == id {
			returned := at
			s.d.chassis[i].ReturnedAt = &returned
		}
	}
}

func (s *Store) AddRule(r freetime.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.rules[r.CarrierCode] = r
}

func (s *Store) AddPayRate(r settlement.PayRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.payRates = append(s.d.payRates, r)
}

func (s *Store) AddSettlement(ds settlement.DriverSettlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.settlements = append(s.d.settlements, ds)
}

// Inspection helpers

func (s *Store) Shipment(id uuid.UUID) shipment.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.shipments[id]
}

func (s *Store) Container(id uuid.UUID) shipment.Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.containers[id]
}

func (s *Store) Order(id uuid.UUID) shipment.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.orders[id]
}

func (s *Store) Trip(id uuid.UUID) trip.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.trips[id]
}

// AllChargeLines includes soft-deleted rows.
func (s *Store) AllChargeLines(orderID uuid.UUID) []billing.ChargeLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []billing.ChargeLine
	for _, l := range s.d.chargeLines {
		if l.OrderID != nil && *l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) Invoices() []billing.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]billing.Invoice(nil), s.d.invoices...)
}

func (s *Store) InvoiceLines(invoiceID uuid.UUID) []billing.InvoiceLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []billing.InvoiceLineItem
	for _, it := range s.d.invoiceLines {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) ChassisUsage() []billing.ChassisUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]billing.ChassisUsage(nil), s.d.chassis...)
}

func (s *Store) Accrual(containerID uuid.UUID) (freetime.Accrual, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.d.accruals[containerID]
	return a, ok
}

func (s *Store) Settlements(driverID uuid.UUID) []settlement.DriverSettlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []settlement.DriverSettlement
	for _, ds := range s.d.settlements {
		if ds.DriverID == driverID {
			out = append(out, ds)
		}
	}
	return out
}

func (s *Store) SettlementLines(settlementID uuid.UUID) []settlement.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []settlement.LineItem
	for _, it := range s.d.settleLines {
		if it.SettlementID == settlementID {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.d.events...)
}

// shipment.Repository

func (s *Store) GetShipment(_ context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetShipment"); err != nil {
		return nil, err
	}
	sh, ok := s.d.shipments[id]
	if !ok {
		return nil, shipment.ErrShipmentNotFound
	}
	return &sh, nil
}

func (s *Store) GetShipmentForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	return s.GetShipment(ctx, id)
}

func (s *Store) AggregateShipment(_ context.Context, shipmentID uuid.UUID) (*shipment.ShipmentCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AggregateShipment"); err != nil {
		return nil, err
	}

	counts := &shipment.ShipmentCounts{}
	for _, c := range s.d.containers {
		if c.ShipmentID != shipmentID {
			continue
		}
		counts.TotalContainers++
		if c.LifecycleStatus == shipment.LifecycleCompleted {
			counts.CompletedContainers++
		}
		if c.IsOut() && c.FreeTimeExpiresAt != nil {
			if counts.EarliestFreeTimeEnd == nil || c.FreeTimeExpiresAt.Before(*counts.EarliestFreeTimeEnd) {
				t := *c.FreeTimeExpiresAt
				counts.EarliestFreeTimeEnd = &t
			}
		}
	}
	counts.Orders = s.countOrders(func(o shipment.Order) bool { return o.ShipmentID == shipmentID })
	return counts, nil
}

func (s *Store) countOrders(match func(shipment.Order) bool) shipment.OrderCounts {
	var oc shipment.OrderCounts
	for _, o := range s.d.orders {
		if o.DeletedAt != nil || !match(o) {
			continue
		}
		oc.Total++
		if o.Status.CountsAsCompleted() {
			oc.Completed++
		}
		if o.Status.IsInFlight() {
			oc.InProgress++
		}
	}
	return oc
}

func (s *Store) UpdateShipmentAggregates(_ context.Context, sh *shipment.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateShipmentAggregates"); err != nil {
		return err
	}
	cur, ok := s.d.shipments[sh.ID]
	if !ok {
		return shipment.ErrShipmentNotFound
	}
	cur.Status = sh.Status
	cur.TotalContainers = sh.TotalContainers
	cur.CompletedContainers = sh.CompletedContainers
	cur.TotalOrders = sh.TotalOrders
	cur.CompletedOrders = sh.CompletedOrders
	cur.LastFreeDay = sh.LastFreeDay
	cur.UpdatedAt = time.Now()
	s.d.shipments[sh.ID] = cur
	return nil
}

func (s *Store) GetContainer(_ context.Context, id uuid.UUID) (*shipment.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetContainer"); err != nil {
		return nil, err
	}
	c, ok := s.d.containers[id]
	if !ok {
		return nil, shipment.ErrContainerNotFound
	}
	return &c, nil
}

func (s *Store) GetContainerForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Container, error) {
	return s.GetContainer(ctx, id)
}

func (s *Store) AggregateContainerOrders(_ context.Context, containerID uuid.UUID) (*shipment.OrderCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AggregateContainerOrders"); err != nil {
		return nil, err
	}
	oc := s.countOrders(func(o shipment.Order) bool { return o.ContainerID == containerID })
	return &oc, nil
}

func (s *Store) UpdateContainerLifecycle(_ context.Context, id uuid.UUID, status shipment.LifecycleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateContainerLifecycle"); err != nil {
		return err
	}
	c, ok := s.d.containers[id]
	if !ok {
		return shipment.ErrContainerNotFound
	}
	c.LifecycleStatus = status
	c.UpdatedAt = time.Now()
	s.d.containers[id] = c
	return nil
}

func (s *Store) UpdateContainerFreeTime(_ context.Context, c *shipment.Container, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateContainerFreeTime"); err != nil {
		return err
	}
	cur, ok := s.d.containers[c.ID]
	if !ok || cur.Version != expectedVersion {
		return shipment.ErrVersionConflict
	}
	cur.GateOutAt = c.GateOutAt
	cur.GateInAt = c.GateInAt
	cur.FreeTimeExpiresAt = c.FreeTimeExpiresAt
	cur.DemurrageStatus = c.DemurrageStatus
	cur.EstimatedCharge = c.EstimatedCharge
	cur.Version = expectedVersion + 1
	cur.UpdatedAt = time.Now()
	s.d.containers[c.ID] = cur
	c.Version = cur.Version
	return nil
}

func (s *Store) ListOpenContainers(_ context.Context, afterID uuid.UUID, limit int) ([]*shipment.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListOpenContainers"); err != nil {
		return nil, err
	}

	var open []*shipment.Container
	for _, c := range s.d.containers {
		if !c.IsOut() || uuidCompare(c.ID, afterID) <= 0 {
			continue
		}
		c := c
		open = append(open, &c)
	}
	sort.Slice(open, func(i, j int) bool { return uuidCompare(open[i].ID, open[j].ID) < 0 })
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*shipment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := s.d.orders[id]
	if !ok {
		return nil, shipment.ErrOrderNotFound
	}
	return &o, nil
}

func (s *Store) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*shipment.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) ListOrdersByContainer(_ context.Context, containerID uuid.UUID) ([]*shipment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*shipment.Order
	for _, o := range s.d.orders {
		if o.ContainerID == containerID && o.DeletedAt == nil {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id uuid.UUID, status shipment.OrderStatus) error {
	return s.mutateOrder("UpdateOrderStatus", id, func(o *shipment.Order) { o.Status = status })
}

func (s *Store) UpdateOrderTotalCharges(_ context.Context, id uuid.UUID, total decimal.Decimal) error {
	return s.mutateOrder("UpdateOrderTotalCharges", id, func(o *shipment.Order) { o.TotalCharges = total })
}

func (s *Store) SoftDeleteOrder(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.mutateOrder("SoftDeleteOrder", id, func(o *shipment.Order) { o.DeletedAt = &at })
}

func (s *Store) mutateOrder(method string, id uuid.UUID, fn func(o *shipment.Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(method); err != nil {
		return err
	}
	o, ok := s.d.orders[id]
	if !ok {
		return shipment.ErrOrderNotFound
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	s.d.orders[id] = o
	return nil
}

// trip.Repository

func (s *Store) GetTrip(_ context.Context, id uuid.UUID) (*trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.d.trips[id]
	if !ok {
		return nil, trip.ErrTripNotFound
	}
	return &t, nil
}

func (s *Store) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	return s.GetTrip(ctx, id)
}

func (s *Store) UpdateTripStatus(_ context.Context, id uuid.UUID, status trip.TripStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateTripStatus"); err != nil {
		return err
	}
	t, ok := s.d.trips[id]
	if !ok {
		return trip.ErrTripNotFound
	}
	t.Status = status
	if completedAt != nil {
		t.CompletedAt = completedAt
	}
	t.UpdatedAt = time.Now()
	s.d.trips[id] = t
	return nil
}

func (s *Store) ListStops(_ context.Context, tripID uuid.UUID) ([]*trip.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stops := s.d.stops[tripID]
	out := make([]*trip.Stop, len(stops))
	for i := range stops {
		st := stops[i]
		out[i] = &st
	}
	return out, nil
}

// billing.Repository

func (s *Store) FindLaneRate(_ context.Context, customerID *uuid.UUID, containerSize string, asOf time.Time) (*billing.LaneRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *billing.LaneRate
	for i := range s.d.laneRates {
		r := s.d.laneRates[i]
		if r.ContainerSize != containerSize || r.EffectiveDate.After(asOf) {
			continue
		}
		if (customerID == nil) != (r.CustomerID == nil) {
			continue
		}
		if customerID != nil && *customerID != *r.CustomerID {
			continue
		}
		if best == nil || r.EffectiveDate.After(best.EffectiveDate) {
			best = &r
		}
	}
	if best == nil {
		return nil, billing.ErrLaneRateNotFound
	}
	return best, nil
}

func (s *Store) ListChargeLines(_ context.Context, orderID uuid.UUID) ([]*billing.ChargeLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*billing.ChargeLine
	for _, l := range s.d.chargeLines {
		if l.OrderID != nil && *l.OrderID == orderID && l.DeletedAt == nil {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (s *Store) SoftDeleteAutoChargeLines(_ context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("SoftDeleteAutoChargeLines"); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.d.chargeLines {
		l := &s.d.chargeLines[i]
		if l.OrderID != nil && *l.OrderID == orderID && l.AutoCalculated && l.DeletedAt == nil {
			t := at
			l.DeletedAt = &t
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateChargeLines(_ context.Context, lines []*billing.ChargeLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateChargeLines"); err != nil {
		return err
	}
	for _, l := range lines {
		for _, existing := range s.d.chargeLines {
			if existing.DeletedAt == nil && existing.IdempotencyKey == l.IdempotencyKey {
				return errDuplicateKey
			}
		}
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.CreatedAt = time.Now()
		s.d.chargeLines = append(s.d.chargeLines, *l)
	}
	return nil
}

var errDuplicateKey = errors.New("memstore: duplicate idempotency key")

func (s *Store) HasInvoiceLineForOrder(_ context.Context, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.d.invoiceLines {
		if it.OrderID != nil && *it.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindDraftInvoiceForOrder(_ context.Context, orderID uuid.UUID) (*billing.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.d.invoices {
		if inv.OrderID == orderID && inv.Status == billing.InvoiceDraft {
			inv := inv
			return &inv, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (s *Store) GetInvoiceByOrder(_ context.Context, orderID uuid.UUID) (*billing.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.d.invoices) - 1; i >= 0; i-- {
		if s.d.invoices[i].OrderID == orderID {
			inv := s.d.invoices[i]
			return &inv, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (s *Store) CreateInvoice(_ context.Context, inv *billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateInvoice"); err != nil {
		return err
	}
	for _, existing := range s.d.invoices {
		if existing.IdempotencyKey == inv.IdempotencyKey {
			return billing.ErrAlreadyInvoiced
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	s.d.invoices = append(s.d.invoices, *inv)
	return nil
}

func (s *Store) CreateInvoiceLineItems(_ context.Context, items []*billing.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateInvoiceLineItems"); err != nil {
		return err
	}
next:
	for _, it := range items {
		for _, existing := range s.d.invoiceLines {
			if existing.IdempotencyKey == it.IdempotencyKey {
				continue next
			}
		}
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.CreatedAt = time.Now()
		s.d.invoiceLines = append(s.d.invoiceLines, *it)
	}
	return nil
}

func (s *Store) ListInvoiceLineItems(_ context.Context, invoiceID uuid.UUID) ([]*billing.InvoiceLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*billing.InvoiceLineItem
	for _, it := range s.d.invoiceLines {
		if it.InvoiceID == invoiceID {
			it := it
			out = append(out, &it)
		}
	}
	return out, nil
}

func (s *Store) UpdateInvoiceTotals(_ context.Context, inv *billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateInvoiceTotals"); err != nil {
		return err
	}
	for i := range s.d.invoices {
		if s.d.invoices[i].ID == inv.ID {
			s.d.invoices[i].Subtotal = inv.Subtotal
			s.d.invoices[i].TotalAmount = inv.TotalAmount
			s.d.invoices[i].BalanceDue = inv.BalanceDue
			s.d.invoices[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return billing.ErrInvoiceNotFound
}

func (s *Store) ListBillableChassisUsage(_ context.Context, containerID uuid.UUID) ([]*billing.ChassisUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*billing.ChassisUsage
	for _, u := range s.d.chassis {
		if u.ContainerID == containerID && !u.Billed && u.ReturnedAt != nil {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

func (s *Store) MarkChassisUsageBilled(_ context.Context, id, invoiceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.d.chassis {
		if s.d.chassis[i].ID == id {
			s.d.chassis[i].Billed = true
			inv := invoiceID
			s.d.chassis[i].InvoiceID = &inv
		}
	}
	return nil
}

// freetime.Repository

func (s *Store) FindRule(_ context.Context, carrierCode string) (*freetime.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.d.rules[carrierCode]
	if !ok {
		return nil, freetime.ErrRuleNotFound
	}
	return &r, nil
}

func (s *Store) GetAccrualByContainer(_ context.Context, containerID uuid.UUID) (*freetime.Accrual, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.d.accruals[containerID]
	if !ok {
		return nil, freetime.ErrAccrualNotFound
	}
	return &a, nil
}

func (s *Store) SaveAccrual(_ context.Context, a *freetime.Accrual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("SaveAccrual"); err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := s.d.accruals[a.ContainerID]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else if a.ID == uuid.Nil {
		a.ID = uuid.New()
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.d.accruals[a.ContainerID] = *a
	return nil
}

func (s *Store) MarkAccrualBilled(_ context.Context, id, invoiceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range s.d.accruals {
		if a.ID == id {
			a.Status = freetime.AccrualBilled
			inv := invoiceID
			a.InvoiceID = &inv
			s.d.accruals[k] = a
			return nil
		}
	}
	return freetime.ErrAccrualNotFound
}

// settlement.Repository

func (s *Store) FindActivePayRate(_ context.Context, driverID uuid.UUID, asOf time.Time) (*settlement.PayRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *settlement.PayRate
	for i := range s.d.payRates {
		r := s.d.payRates[i]
		if r.DriverID != driverID || r.EffectiveDate.After(asOf) {
			continue
		}
		if best == nil || r.EffectiveDate.After(best.EffectiveDate) {
			best = &r
		}
	}
	if best == nil {
		return nil, settlement.ErrPayRateNotFound
	}
	return best, nil
}

func (s *Store) FindSettlementForUpdate(_ context.Context, driverID uuid.UUID, periodStart time.Time) (*settlement.DriverSettlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.d.settlements {
		if ds.DriverID == driverID && ds.PeriodStart.Equal(periodStart) {
			ds := ds
			return &ds, nil
		}
	}
	return nil, settlement.ErrSettlementNotFound
}

func (s *Store) FindCurrentSettlement(_ context.Context, driverID uuid.UUID, asOf time.Time) (*settlement.DriverSettlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.d.settlements {
		if ds.DriverID == driverID && !ds.PeriodStart.After(asOf) && ds.PeriodStart.After(asOf.AddDate(0, 0, -7)) {
			ds := ds
			return &ds, nil
		}
	}
	return nil, settlement.ErrSettlementNotFound
}

func (s *Store) CreateSettlement(_ context.Context, ds *settlement.DriverSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateSettlement"); err != nil {
		return err
	}
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	ds.CreatedAt = time.Now()
	ds.UpdatedAt = ds.CreatedAt
	s.d.settlements = append(s.d.settlements, *ds)
	return nil
}

func (s *Store) UpdateSettlementTotals(_ context.Context, ds *settlement.DriverSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateSettlementTotals"); err != nil {
		return err
	}
	for i := range s.d.settlements {
		if s.d.settlements[i].ID == ds.ID {
			cur := &s.d.settlements[i]
			cur.GrossEarnings = ds.GrossEarnings
			cur.Deductions = ds.Deductions
			cur.NetPay = ds.NetPay
			cur.TotalMiles = ds.TotalMiles
			cur.TotalTrips = ds.TotalTrips
			cur.UpdatedAt = time.Now()
			return nil
		}
	}
	return settlement.ErrSettlementNotFound
}

func (s *Store) HasLineItemsForTrip(_ context.Context, tripID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.d.settleLines {
		if it.TripID != nil && *it.TripID == tripID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateLineItems(_ context.Context, items []*settlement.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateLineItems"); err != nil {
		return err
	}
	for _, it := range items {
		for _, existing := range s.d.settleLines {
			if existing.IdempotencyKey == it.IdempotencyKey {
				return errDuplicateKey
			}
		}
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.CreatedAt = time.Now()
		s.d.settleLines = append(s.d.settleLines, *it)
	}
	return nil
}

func (s *Store) ListLineItems(_ context.Context, settlementID uuid.UUID) ([]*settlement.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*settlement.LineItem
	for _, it := range s.d.settleLines {
		if it.SettlementID == settlementID {
			it := it
			out = append(out, &it)
		}
	}
	return out, nil
}

// event.Outbox

func (s *Store) Append(_ context.Context, events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Append"); err != nil {
		return err
	}
	for _, e := range events {
		s.seq++
		e.Seq = s.seq
		s.d.events = append(s.d.events, e)
	}
	return nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.d.events {
		if e.PublishedAt == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("MarkPublished"); err != nil {
		return err
	}
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.d.events {
		if marked[s.d.events[i].ID] {
			t := at
			s.d.events[i].PublishedAt = &t
		}
	}
	return nil
}

func uuidCompare(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
