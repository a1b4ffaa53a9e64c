package settlement

import "errors"

var (
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrPayRateNotFound    = errors.New("pay rate not found")
	ErrUnknownPayMethod   = errors.New("unknown pay method")

	ErrSettlementPeriodLocked = errors.New("settlement period is not open for changes")
)
