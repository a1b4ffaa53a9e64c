package settlement

import (
	"context"
	"testing"
	"time"

	domainSettlement "drayage-tms/internal/domain/settlement"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/testutil/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func addTrip(store *memstore.Store, driverID uuid.UUID, miles string, completedAt time.Time, stops ...trip.Stop) *trip.Trip {
	t := trip.Trip{
		ID:          uuid.New(),
		TripNumber:  "TRP-" + uuid.NewString()[:6],
		DriverID:    &driverID,
		Status:      trip.StatusCompleted,
		Revenue:     dec("1000"),
		TotalMiles:  dec(miles),
		CompletedAt: &completedAt,
	}
	for i := range stops {
		stops[i].TripID = t.ID
	}
	store.AddTrip(t, stops...)
	return &t
}

func addPerMileRate(store *memstore.Store, driverID uuid.UUID) {
	store.AddPayRate(domainSettlement.PayRate{
		ID:                 uuid.New(),
		DriverID:           driverID,
		PayMethod:          domainSettlement.PayPerMile,
		Rate:               dec("2.00"),
		WaitingRatePerHour: dec("40"),
		FreeWaitingMinutes: 120,
		EffectiveDate:      monday.AddDate(0, -1, 0),
	})
}

func TestTripsAccumulateInOpenPeriod(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	addPerMileRate(store, driverID)
	calc := NewCalculator(store, store, Defaults{})

	a := addTrip(store, driverID, "100", monday.Add(34*time.Hour))
	b := addTrip(store, driverID, "150", monday.Add(80*time.Hour))

	first, err := calc.SettleTrip(ctx, a, nil, monday.Add(35*time.Hour))
	require.NoError(t, err)
	assert.True(t, first.Created)
	second, err := calc.SettleTrip(ctx, b, nil, monday.Add(81*time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Created)

	periods := store.Settlements(driverID)
	require.Len(t, periods, 1)
	ds := periods[0]
	assert.Equal(t, monday, ds.PeriodStart)
	assert.Equal(t, monday.AddDate(0, 0, 7), ds.PeriodEnd)
	assert.Equal(t, domainSettlement.StatusDraft, ds.Status)
	assert.Equal(t, 2, ds.TotalTrips)
	assert.True(t, dec("500").Equal(ds.GrossEarnings))
	assert.True(t, dec("500").Equal(ds.NetPay))
	assert.True(t, dec("250").Equal(ds.TotalMiles))

	sum := decimal.Zero
	for _, l := range store.SettlementLines(ds.ID) {
		sum = sum.Add(l.Amount)
	}
	assert.True(t, sum.Equal(ds.GrossEarnings))
}

func TestSettledTripIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	addPerMileRate(store, driverID)
	calc := NewCalculator(store, store, Defaults{})
	a := addTrip(store, driverID, "100", monday.Add(10*time.Hour))

	_, err := calc.SettleTrip(ctx, a, nil, monday.Add(10*time.Hour))
	require.NoError(t, err)
	res, err := calc.SettleTrip(ctx, a, nil, monday.Add(11*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	ds := store.Settlements(driverID)[0]
	assert.Len(t, store.SettlementLines(ds.ID), 1)
	assert.Equal(t, 1, ds.TotalTrips)
}

func TestWaitingPayBeyondFreeMinutes(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	addPerMileRate(store, driverID)
	calc := NewCalculator(store, store, Defaults{})
	a := addTrip(store, driverID, "100", monday.Add(10*time.Hour),
		trip.Stop{ID: uuid.New(), Sequence: 1, StopType: "PICKUP", DetentionMinutes: 90},
		trip.Stop{ID: uuid.New(), Sequence: 2, StopType: "DELIVERY", DetentionMinutes: 60},
	)

	res, err := calc.SettleTrip(ctx, a, nil, monday.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	wait := res.Lines[1]
	assert.Equal(t, domainSettlement.LineWaitingPay, wait.Kind)
	assert.True(t, dec("0.5").Equal(wait.Quantity))
	assert.True(t, dec("20").Equal(wait.Amount))
	assert.True(t, dec("220").Equal(res.Settlement.GrossEarnings))
	assert.True(t, dec("100").Equal(res.Settlement.TotalMiles), "waiting lines carry no miles")
}

func TestLockedPeriodRollsForward(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	addPerMileRate(store, driverID)
	store.AddSettlement(domainSettlement.DriverSettlement{
		ID:          uuid.New(),
		DriverID:    driverID,
		PeriodStart: monday,
		PeriodEnd:   monday.AddDate(0, 0, 7),
		Status:      domainSettlement.StatusApproved,
	})
	calc := NewCalculator(store, store, Defaults{})
	a := addTrip(store, driverID, "100", monday.Add(10*time.Hour))

	res, err := calc.SettleTrip(ctx, a, nil, monday.Add(10*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, monday.AddDate(0, 0, 7), res.Settlement.PeriodStart)
}

func TestNoDraftPeriodWithinReach(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	addPerMileRate(store, driverID)
	for i := 0; i <= maxRollForward; i++ {
		start := monday.AddDate(0, 0, 7*i)
		store.AddSettlement(domainSettlement.DriverSettlement{
			ID:          uuid.New(),
			DriverID:    driverID,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 0, 7),
			Status:      domainSettlement.StatusPaid,
		})
	}
	calc := NewCalculator(store, store, Defaults{})
	a := addTrip(store, driverID, "100", monday.Add(10*time.Hour))

	_, err := calc.SettleTrip(ctx, a, nil, monday.Add(10*time.Hour))
	require.ErrorIs(t, err, domainSettlement.ErrSettlementPeriodLocked)
}

func TestMissingPayRate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	driverID := uuid.New()
	a := addTrip(store, driverID, "100", monday.Add(10*time.Hour))

	res, err := NewCalculator(store, store, Defaults{}).SettleTrip(ctx, a, nil, monday)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, store.Settlements(driverID))

	defaults := Defaults{PayMethod: domainSettlement.PayFlat, PayRate: dec("175"), FreeWaitingMinutes: 120, WaitingRate: decimal.Zero}
	res, err = NewCalculator(store, store, defaults).SettleTrip(ctx, a, nil, monday)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.True(t, dec("175").Equal(res.Settlement.GrossEarnings))
}

func TestTripWithoutDriverIsSkipped(t *testing.T) {
	store := memstore.New()
	tr := &trip.Trip{ID: uuid.New(), Status: trip.StatusCompleted}

	res, err := NewCalculator(store, store, Defaults{}).SettleTrip(context.Background(), tr, nil, monday)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestBasePay(t *testing.T) {
	tr := &trip.Trip{Revenue: dec("1000"), TotalMiles: dec("100")}
	tests := []struct {
		method  domainSettlement.PayMethod
		rate    string
		wantQty string
	}{
		{domainSettlement.PayFlat, "250", "1"},
		{domainSettlement.PayPerMile, "2.5", "100"},
		{domainSettlement.PayPercentage, "25", "1000"},
	}
	for _, tt := range tests {
		got, err := BasePay(&domainSettlement.PayRate{PayMethod: tt.method, Rate: dec(tt.rate)}, tr)
		require.NoError(t, err)
		assert.Equal(t, "250.00", got.Amount.StringFixed(2), string(tt.method))
		assert.True(t, dec(tt.wantQty).Equal(got.Quantity), string(tt.method))
	}

	_, err := BasePay(&domainSettlement.PayRate{PayMethod: "HOURLY"}, tr)
	require.ErrorIs(t, err, domainSettlement.ErrUnknownPayMethod)
}

func TestSummarizeSubtractsDeductions(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	items := []*domainSettlement.LineItem{
		{TripID: &a, Kind: domainSettlement.LineBasePay, Amount: dec("300"), Miles: dec("120")},
		{TripID: &a, Kind: domainSettlement.LineWaitingPay, Amount: dec("20")},
		{TripID: &b, Kind: domainSettlement.LineBasePay, Amount: dec("200"), Miles: dec("80")},
		{Kind: domainSettlement.LineDeduction, Amount: dec("45.50")},
	}
	ds := &domainSettlement.DriverSettlement{}
	Summarize(ds, items)

	assert.Equal(t, "520.00", ds.GrossEarnings.StringFixed(2))
	assert.Equal(t, "45.50", ds.Deductions.StringFixed(2))
	assert.Equal(t, "474.50", ds.NetPay.StringFixed(2))
	assert.Equal(t, "200.00", ds.TotalMiles.StringFixed(2))
	assert.Equal(t, 2, ds.TotalTrips)
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{monday, monday},
		{monday.Add(23*time.Hour + 59*time.Minute), monday},
		{time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC), monday},
		{time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), monday.AddDate(0, 0, 7)},
		{time.Date(2025, 3, 10, 1, 0, 0, 0, time.FixedZone("EST", -5*3600)), monday.AddDate(0, 0, 7)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekStart(tt.in), tt.in.String())
	}
}
