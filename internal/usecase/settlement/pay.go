package settlement

import (
	"fmt"

	domainSettlement "drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/trip"

	"github.com/shopspring/decimal"
)

// Component is one priced pay component of a trip
type Component struct {
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}

// Waiting is the billable detention of a trip
type Waiting struct {
	Minutes int
	Hours   decimal.Decimal
	Amount  decimal.Decimal
}

// BasePay prices a trip by the rate's pay method.
func BasePay(rate *domainSettlement.PayRate, t *trip.Trip) (Component, error) {
	switch rate.PayMethod {
	case domainSettlement.PayFlat:
		return Component{Quantity: decimal.NewFromInt(1), Amount: rate.Rate.Round(2)}, nil
	case domainSettlement.PayPerMile:
		return Component{Quantity: t.TotalMiles, Amount: rate.Rate.Mul(t.TotalMiles).Round(2)}, nil
	case domainSettlement.PayPercentage:
		return Component{Quantity: t.Revenue, Amount: rate.Rate.Div(hundred).Mul(t.Revenue).Round(2)}, nil
	default:
		return Component{}, fmt.Errorf("%w: %q", domainSettlement.ErrUnknownPayMethod, rate.PayMethod)
	}
}

// WaitingPay charges detention across all stops beyond the rate's free minutes.
func WaitingPay(rate *domainSettlement.PayRate, stops []*trip.Stop) Waiting {
	total := 0
	for _, s := range stops {
		total += s.DetentionMinutes
	}
	billable := total - rate.FreeWaitingMinutes
	if billable <= 0 {
		return Waiting{Hours: decimal.Zero, Amount: decimal.Zero}
	}
	hours := decimal.NewFromInt(int64(billable)).Div(sixty)
	return Waiting{
		Minutes: billable,
		Hours:   hours.Round(2),
		Amount:  hours.Mul(rate.WaitingRatePerHour).Round(2),
	}
}
