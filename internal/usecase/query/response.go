package query

import (
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/usecase/automation"
	"drayage-tms/internal/usecase/propagation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ShipmentResponse struct {
	ID                  uuid.UUID               `json:"id"`
	Reference           string                  `json:"reference"`
	CustomerID          *uuid.UUID              `json:"customer_id"`
	CarrierCode         string                  `json:"carrier_code"`
	Type                shipment.ShipmentType   `json:"type"`
	Status              shipment.ShipmentStatus `json:"status"`
	TotalContainers     int                     `json:"total_containers"`
	CompletedContainers int                     `json:"completed_containers"`
	TotalOrders         int                     `json:"total_orders"`
	CompletedOrders     int                     `json:"completed_orders"`
	LastFreeDay         *time.Time              `json:"last_free_day"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

func NewShipmentResponse(s *shipment.Shipment) *ShipmentResponse {
	return &ShipmentResponse{
		ID:                  s.ID,
		Reference:           s.Reference,
		CustomerID:          s.CustomerID,
		CarrierCode:         s.CarrierCode,
		Type:                s.Type,
		Status:              s.Status,
		TotalContainers:     s.TotalContainers,
		CompletedContainers: s.CompletedContainers,
		TotalOrders:         s.TotalOrders,
		CompletedOrders:     s.CompletedOrders,
		LastFreeDay:         s.LastFreeDay,
		UpdatedAt:           s.UpdatedAt,
	}
}

type ContainerResponse struct {
	ID                uuid.UUID                `json:"id"`
	ShipmentID        uuid.UUID                `json:"shipment_id"`
	ContainerNumber   string                   `json:"container_number"`
	Size              string                   `json:"size"`
	IsHazmat          bool                     `json:"is_hazmat"`
	IsOverweight      bool                     `json:"is_overweight"`
	IsReefer          bool                     `json:"is_reefer"`
	LifecycleStatus   shipment.LifecycleStatus `json:"lifecycle_status"`
	GateOutAt         *time.Time               `json:"gate_out_at"`
	GateInAt          *time.Time               `json:"gate_in_at"`
	FreeTimeExpiresAt *time.Time               `json:"free_time_expires_at"`
	DemurrageStatus   shipment.DemurrageStatus `json:"demurrage_status"`
	EstimatedCharge   decimal.Decimal          `json:"estimated_charge"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

func NewContainerResponse(c *shipment.Container) *ContainerResponse {
	return &ContainerResponse{
		ID:                c.ID,
		ShipmentID:        c.ShipmentID,
		ContainerNumber:   c.ContainerNumber,
		Size:              c.Size,
		IsHazmat:          c.IsHazmat,
		IsOverweight:      c.IsOverweight,
		IsReefer:          c.IsReefer,
		LifecycleStatus:   c.LifecycleStatus,
		GateOutAt:         c.GateOutAt,
		GateInAt:          c.GateInAt,
		FreeTimeExpiresAt: c.FreeTimeExpiresAt,
		DemurrageStatus:   c.DemurrageStatus,
		EstimatedCharge:   c.EstimatedCharge,
		UpdatedAt:         c.UpdatedAt,
	}
}

type AccrualResponse struct {
	ID                uuid.UUID              `json:"id"`
	CarrierCode       string                 `json:"carrier_code"`
	FreeDays          int                    `json:"free_days"`
	FreeTimeStart     time.Time              `json:"free_time_start"`
	FreeTimeExpiresAt time.Time              `json:"free_time_expires_at"`
	GateInAt          *time.Time             `json:"gate_in_at"`
	DaysUsed          int                    `json:"days_used"`
	DaysOver          int                    `json:"days_over"`
	TotalCharge       decimal.Decimal        `json:"total_charge"`
	Status            freetime.AccrualStatus `json:"status"`
	InvoiceID         *uuid.UUID             `json:"invoice_id"`
}

// DemurrageResponse is a container's free-time clock with its accrual, if opened.
type DemurrageResponse struct {
	ContainerID       uuid.UUID                `json:"container_id"`
	DemurrageStatus   shipment.DemurrageStatus `json:"demurrage_status"`
	FreeTimeExpiresAt *time.Time               `json:"free_time_expires_at"`
	EstimatedCharge   decimal.Decimal          `json:"estimated_charge"`
	Accrual           *AccrualResponse         `json:"accrual,omitempty"`
}

func NewAccrualResponse(a *freetime.Accrual) *AccrualResponse {
	return &AccrualResponse{
		ID:                a.ID,
		CarrierCode:       a.CarrierCode,
		FreeDays:          a.FreeDays,
		FreeTimeStart:     a.FreeTimeStart,
		FreeTimeExpiresAt: a.FreeTimeExpiresAt,
		GateInAt:          a.GateInAt,
		DaysUsed:          a.DaysUsed,
		DaysOver:          a.DaysOver,
		TotalCharge:       a.TotalCharge,
		Status:            a.Status,
		InvoiceID:         a.InvoiceID,
	}
}

type ChargeLineResponse struct {
	ID             uuid.UUID          `json:"id"`
	ChargeType     billing.ChargeType `json:"charge_type"`
	Description    string             `json:"description"`
	Quantity       decimal.Decimal    `json:"quantity"`
	UnitRate       decimal.Decimal    `json:"unit_rate"`
	Amount         decimal.Decimal    `json:"amount"`
	AutoCalculated bool               `json:"auto_calculated"`
	SourceEventID  *uuid.UUID         `json:"source_event_id"`
}

type ChargesResponse struct {
	OrderID uuid.UUID            `json:"order_id"`
	Lines   []ChargeLineResponse `json:"lines"`
	Total   decimal.Decimal      `json:"total"`
}

func NewChargeLineResponses(lines []*billing.ChargeLine) []ChargeLineResponse {
	out := make([]ChargeLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, ChargeLineResponse{
			ID:             l.ID,
			ChargeType:     l.ChargeType,
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitRate:       l.UnitRate,
			Amount:         l.Amount,
			AutoCalculated: l.AutoCalculated,
			SourceEventID:  l.SourceEventID,
		})
	}
	return out
}

type InvoiceLineResponse struct {
	ID          uuid.UUID          `json:"id"`
	OrderNumber string             `json:"order_number,omitempty"`
	ChargeType  billing.ChargeType `json:"charge_type"`
	Description string             `json:"description"`
	Quantity    decimal.Decimal    `json:"quantity"`
	UnitRate    decimal.Decimal    `json:"unit_rate"`
	Amount      decimal.Decimal    `json:"amount"`
}

type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerID    uuid.UUID             `json:"customer_id"`
	OrderID       uuid.UUID             `json:"order_id"`
	Status        billing.InvoiceStatus `json:"status"`
	Currency      string                `json:"currency"`
	IssueDate     time.Time             `json:"issue_date"`
	DueDate       time.Time             `json:"due_date"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	BalanceDue    decimal.Decimal       `json:"balance_due"`
	SourceEventID *uuid.UUID            `json:"source_event_id"`
	Lines         []InvoiceLineResponse `json:"lines,omitempty"`
}

func NewInvoiceResponse(inv *billing.Invoice, lines []*billing.InvoiceLineItem) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		OrderID:       inv.OrderID,
		Status:        inv.Status,
		Currency:      inv.Currency,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Subtotal:      inv.Subtotal,
		TotalAmount:   inv.TotalAmount,
		AmountPaid:    inv.AmountPaid,
		BalanceDue:    inv.BalanceDue,
		SourceEventID: inv.SourceEventID,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			ID:          l.ID,
			OrderNumber: l.OrderNumber,
			ChargeType:  l.ChargeType,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitRate:    l.UnitRate,
			Amount:      l.Amount,
		})
	}
	return resp
}

type SettlementLineResponse struct {
	ID          uuid.UUID           `json:"id"`
	TripID      *uuid.UUID          `json:"trip_id"`
	Kind        settlement.LineKind `json:"kind"`
	Description string              `json:"description"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Rate        decimal.Decimal     `json:"rate"`
	Amount      decimal.Decimal     `json:"amount"`
	Miles       decimal.Decimal     `json:"miles"`
}

type SettlementResponse struct {
	ID            uuid.UUID                `json:"id"`
	DriverID      uuid.UUID                `json:"driver_id"`
	PeriodStart   time.Time                `json:"period_start"`
	PeriodEnd     time.Time                `json:"period_end"`
	Status        settlement.Status        `json:"status"`
	GrossEarnings decimal.Decimal          `json:"gross_earnings"`
	Deductions    decimal.Decimal          `json:"deductions"`
	NetPay        decimal.Decimal          `json:"net_pay"`
	TotalMiles    decimal.Decimal          `json:"total_miles"`
	TotalTrips    int                      `json:"total_trips"`
	Lines         []SettlementLineResponse `json:"lines,omitempty"`
}

func NewSettlementResponse(ds *settlement.DriverSettlement, lines []*settlement.LineItem) *SettlementResponse {
	resp := &SettlementResponse{
		ID:            ds.ID,
		DriverID:      ds.DriverID,
		PeriodStart:   ds.PeriodStart,
		PeriodEnd:     ds.PeriodEnd,
		Status:        ds.Status,
		GrossEarnings: ds.GrossEarnings,
		Deductions:    ds.Deductions,
		NetPay:        ds.NetPay,
		TotalMiles:    ds.TotalMiles,
		TotalTrips:    ds.TotalTrips,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, SettlementLineResponse{
			ID:          l.ID,
			TripID:      l.TripID,
			Kind:        l.Kind,
			Description: l.Description,
			Quantity:    l.Quantity,
			Rate:        l.Rate,
			Amount:      l.Amount,
			Miles:       l.Miles,
		})
	}
	return resp
}

type DerivedChangeResponse struct {
	Kind          propagation.Kind `json:"kind"`
	ID            uuid.UUID        `json:"id"`
	Status        string           `json:"status"`
	StatusChanged bool             `json:"status_changed"`
}

// OutcomeResponse summarizes the writes of one applied mutation.
type OutcomeResponse struct {
	EventID         uuid.UUID               `json:"event_id"`
	NoOp            bool                    `json:"noop"`
	Derived         []DerivedChangeResponse `json:"derived"`
	ChargeLines     []ChargeLineResponse    `json:"charge_lines,omitempty"`
	Invoice         *InvoiceResponse        `json:"invoice,omitempty"`
	InvoiceCreated  bool                    `json:"invoice_created"`
	Settlement      *SettlementResponse     `json:"settlement,omitempty"`
	EventsAppended  int                     `json:"events_appended"`
	Events          []event.Event           `json:"events"`
}

func NewOutcomeResponse(out *automation.Outcome) *OutcomeResponse {
	resp := &OutcomeResponse{
		EventID:         out.EventID,
		NoOp:            out.NoOp,
		Derived:         make([]DerivedChangeResponse, 0, len(out.Derived)),
		InvoiceCreated:  out.InvoiceCreated,
		EventsAppended:  len(out.Events),
		Events:          out.Events,
	}
	for _, c := range out.Derived {
		resp.Derived = append(resp.Derived, DerivedChangeResponse{
			Kind:          c.Kind,
			ID:            c.ID,
			Status:        c.Status,
			StatusChanged: c.StatusChanged,
		})
	}
	if len(out.ChargeLines) > 0 {
		resp.ChargeLines = NewChargeLineResponses(out.ChargeLines)
	}
	if out.Invoice != nil {
		resp.Invoice = NewInvoiceResponse(out.Invoice, out.InvoiceLines)
	}
	if out.Settlement != nil {
		resp.Settlement = NewSettlementResponse(out.Settlement, out.SettlementLines)
	}
	if resp.Events == nil {
		resp.Events = []event.Event{}
	}
	return resp
}
