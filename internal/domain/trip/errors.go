package trip

import "errors"

var (
	ErrTripNotFound  = errors.New("trip not found")
	ErrInvalidStatus = errors.New("invalid trip status")
)
