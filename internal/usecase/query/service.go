// Package query serves the read side of the engine's derived state.
package query

import (
	"context"
	"errors"
	"time"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/logger"
	appErrors "drayage-tms/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	shipments   shipment.Repository
	accruals    freetime.Repository
	billing     billing.Repository
	settlements settlement.Repository
	now         func() time.Time
}

func NewService(shipments shipment.Repository, accruals freetime.Repository, billingRepo billing.Repository, settlements settlement.Repository) *Service {
	return &Service{
		shipments:   shipments,
		accruals:    accruals,
		billing:     billingRepo,
		settlements: settlements,
		now:         time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func wrap(err error, notFound error, what string) error {
	if errors.Is(err, notFound) {
		return appErrors.NewAppError(appErrors.CodeNotFound, what+" not found", err)
	}
	logger.Error("Query failed", zap.String("resource", what), zap.Error(err))
	return appErrors.NewAppError(appErrors.CodeInternal, "Failed to load "+what, err)
}

func (s *Service) GetShipment(ctx context.Context, id uuid.UUID) (*ShipmentResponse, error) {
	sh, err := s.shipments.GetShipment(ctx, id)
	if err != nil {
		return nil, wrap(err, shipment.ErrShipmentNotFound, "Shipment")
	}
	return NewShipmentResponse(sh), nil
}

func (s *Service) GetContainer(ctx context.Context, id uuid.UUID) (*ContainerResponse, error) {
	c, err := s.shipments.GetContainer(ctx, id)
	if err != nil {
		return nil, wrap(err, shipment.ErrContainerNotFound, "Container")
	}
	return NewContainerResponse(c), nil
}

func (s *Service) GetDemurrage(ctx context.Context, containerID uuid.UUID) (*DemurrageResponse, error) {
	c, err := s.shipments.GetContainer(ctx, containerID)
	if err != nil {
		return nil, wrap(err, shipment.ErrContainerNotFound, "Container")
	}
	resp := &DemurrageResponse{
		ContainerID:       c.ID,
		DemurrageStatus:   c.DemurrageStatus,
		FreeTimeExpiresAt: c.FreeTimeExpiresAt,
		EstimatedCharge:   c.EstimatedCharge,
	}

	a, err := s.accruals.GetAccrualByContainer(ctx, containerID)
	switch {
	case errors.Is(err, freetime.ErrAccrualNotFound):
	case err != nil:
		return nil, wrap(err, freetime.ErrAccrualNotFound, "Accrual")
	default:
		resp.Accrual = NewAccrualResponse(a)
	}
	return resp, nil
}

func (s *Service) ListCharges(ctx context.Context, orderID uuid.UUID) (*ChargesResponse, error) {
	if _, err := s.shipments.GetOrder(ctx, orderID); err != nil {
		return nil, wrap(err, shipment.ErrOrderNotFound, "Order")
	}
	lines, err := s.billing.ListChargeLines(ctx, orderID)
	if err != nil {
		return nil, wrap(err, billing.ErrInvoiceNotFound, "Charge lines")
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return &ChargesResponse{
		OrderID: orderID,
		Lines:   NewChargeLineResponses(lines),
		Total:   total,
	}, nil
}

func (s *Service) GetInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.billing.GetInvoiceByOrder(ctx, orderID)
	if err != nil {
		return nil, wrap(err, billing.ErrInvoiceNotFound, "Invoice")
	}
	lines, err := s.billing.ListInvoiceLineItems(ctx, inv.ID)
	if err != nil {
		return nil, wrap(err, billing.ErrInvoiceNotFound, "Invoice lines")
	}
	return NewInvoiceResponse(inv, lines), nil
}

// CurrentSettlement returns the driver's settlement for the week containing now.
func (s *Service) CurrentSettlement(ctx context.Context, driverID uuid.UUID) (*SettlementResponse, error) {
	ds, err := s.settlements.FindCurrentSettlement(ctx, driverID, s.now())
	if err != nil {
		return nil, wrap(err, settlement.ErrSettlementNotFound, "Settlement")
	}
	lines, err := s.settlements.ListLineItems(ctx, ds.ID)
	if err != nil {
		return nil, wrap(err, settlement.ErrSettlementNotFound, "Settlement lines")
	}
	return NewSettlementResponse(ds, lines), nil
}
