package automation

import (
	"testing"
	"time"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	appErrors "drayage-tms/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestValidateOrderTransition(t *testing.T) {
	tests := []struct {
		from, to shipment.OrderStatus
		ok       bool
	}{
		{shipment.OrderPending, shipment.OrderDispatched, true},
		{shipment.OrderDispatched, shipment.OrderCompleted, true},
		{shipment.OrderDispatched, shipment.OrderReady, true},
		{shipment.OrderHold, shipment.OrderInProgress, true},
		{shipment.OrderDelivered, shipment.OrderInvoiced, true},
		{shipment.OrderPending, shipment.OrderCompleted, false},
		{shipment.OrderCompleted, shipment.OrderDispatched, false},
		{shipment.OrderInvoiced, shipment.OrderCompleted, false},
		{shipment.OrderCancelled, shipment.OrderPending, false},
	}
	for _, tt := range tests {
		err := ValidateOrderTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			continue
		}
		assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err), "%s -> %s", tt.from, tt.to)
	}

	assert.Empty(t, AllowedOrderTransitions(shipment.OrderInvoiced))
}

func TestValidateTripTransition(t *testing.T) {
	assert.NoError(t, ValidateTripTransition(trip.StatusInProgress, trip.StatusCompleted))
	assert.NoError(t, ValidateTripTransition(trip.StatusFailed, trip.StatusPlanned))
	assert.Error(t, ValidateTripTransition(trip.StatusCompleted, trip.StatusInProgress))
	assert.Error(t, ValidateTripTransition(trip.StatusPlanned, trip.StatusCompleted))
}

func TestBackoffGrowsWithJitter(t *testing.T) {
	step := 10 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		d := backoff(step, attempt)
		floor := step << attempt
		assert.GreaterOrEqual(t, d, floor)
		assert.Less(t, d, floor+step)
	}
	assert.Zero(t, backoff(0, 3))
}
