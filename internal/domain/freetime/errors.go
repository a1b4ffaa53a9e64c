package freetime

import "errors"

var (
	ErrRuleNotFound    = errors.New("carrier free time rule not found")
	ErrAccrualNotFound = errors.New("demurrage accrual not found")
	ErrAccrualBilled   = errors.New("demurrage accrual already billed")
)
