package automation

import (
	"errors"

	"drayage-tms/internal/domain/billing"
	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	appErrors "drayage-tms/pkg/errors"
)

// translate wraps domain sentinels in an AppError carrying the code the
// delivery layer maps to a status. Errors that already carry a code pass through.
func translate(err error) error {
	if err == nil || appErrors.CodeOf(err) != "" {
		return err
	}

	switch {
	case errors.Is(err, shipment.ErrInconsistentParent):
		return appErrors.NewAppError(appErrors.CodeInconsistentParent, "Derived state parent is missing", err)
	case errors.Is(err, shipment.ErrShipmentNotFound),
		errors.Is(err, shipment.ErrContainerNotFound),
		errors.Is(err, shipment.ErrOrderNotFound),
		errors.Is(err, trip.ErrTripNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound),
		errors.Is(err, settlement.ErrSettlementNotFound):
		return appErrors.NewAppError(appErrors.CodeNotFound, "Resource not found", err)
	case errors.Is(err, shipment.ErrGateOutMissing),
		errors.Is(err, shipment.ErrGateInBeforeOut):
		return appErrors.NewAppError(appErrors.CodeValidation, "Invalid gate event", err)
	case errors.Is(err, shipment.ErrOrderDeleted):
		return appErrors.NewAppError(appErrors.CodeInvalidTransition, "Order is deleted", err)
	case errors.Is(err, shipment.ErrVersionConflict),
		errors.Is(err, settlement.ErrSettlementPeriodLocked),
		errors.Is(err, freetime.ErrAccrualBilled):
		return appErrors.NewAppError(appErrors.CodeConflict, "Conflicting update", err)
	}
	return err
}

// isClientError reports whether err was caused by the request rather than the engine.
func isClientError(err error) bool {
	switch appErrors.CodeOf(err) {
	case appErrors.CodeNotFound, appErrors.CodeValidation, appErrors.CodeInvalidTransition:
		return true
	}
	return false
}
