package billing

import "errors"

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrLaneRateNotFound = errors.New("lane rate not found")
	ErrAlreadyInvoiced  = errors.New("order already invoiced")
)
