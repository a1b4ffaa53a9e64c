package automation

import (
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/usecase/propagation"

	"github.com/google/uuid"
)

// Outcome describes everything one mutation wrote, including its reactions
type Outcome struct {
	EventID         uuid.UUID                    `json:"event_id"`
	NoOp            bool                         `json:"noop"`
	Derived         []propagation.Change         `json:"derived"`
	ChargeLines     []*billing.ChargeLine        `json:"charge_lines,omitempty"`
	Invoice         *billing.Invoice             `json:"invoice,omitempty"`
	InvoiceCreated  bool                         `json:"invoice_created"`
	InvoiceLines    []*billing.InvoiceLineItem   `json:"invoice_lines,omitempty"`
	Settlement      *settlement.DriverSettlement `json:"settlement,omitempty"`
	SettlementLines []*settlement.LineItem       `json:"settlement_lines,omitempty"`
	Events          []event.Event                `json:"events"`
}

func (o *Outcome) emit(t event.EntityType, id uuid.UUID, action event.Action, status string, at time.Time) {
	ev := event.New(t, id, action, status, at)
	causedBy := o.EventID
	ev.CausedBy = &causedBy
	o.Events = append(o.Events, ev)
}

func (o *Outcome) addDerived(changes []propagation.Change, at time.Time) {
	for _, c := range changes {
		action := event.ActionUpdated
		if c.StatusChanged {
			action = event.ActionStatusChanged
		}
		o.emit(entityOf(c.Kind), c.ID, action, c.Status, at)
	}
	o.Derived = append(o.Derived, changes...)
}

func entityOf(k propagation.Kind) event.EntityType {
	switch k {
	case propagation.KindContainer:
		return event.EntityContainer
	case propagation.KindShipment:
		return event.EntityShipment
	default:
		return event.EntityOrder
	}
}
