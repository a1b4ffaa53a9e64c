package shipment

import "errors"

var (
	ErrShipmentNotFound   = errors.New("shipment not found")
	ErrContainerNotFound  = errors.New("container not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderDeleted       = errors.New("order is deleted")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrGateOutMissing     = errors.New("container has no gate-out time")
	ErrGateInBeforeOut    = errors.New("gate-in precedes gate-out")
	ErrInconsistentParent = errors.New("parent row missing for derived state")
	ErrVersionConflict    = errors.New("container was modified concurrently")
)
