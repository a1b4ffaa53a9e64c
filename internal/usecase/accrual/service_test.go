package accrual

import (
	"context"
	"testing"
	"time"

	"drayage-tms/internal/domain/freetime"
	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/testutil/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memstore.Store, memstore.Hierarchy) {
	t.Helper()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MAEU", 1, 1)
	return NewService(store, store, newTestCalculator(t)), store, h
}

func TestGateOutOpensAccrualWithCarrierRule(t *testing.T) {
	ctx := context.Background()
	svc, store, h := newTestService(t)
	store.AddRule(*tieredRule())
	containerID := h.Containers[0].ID
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	res, err := svc.GateOut(ctx, containerID, out, out.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Changed)

	c := store.Container(containerID)
	require.NotNil(t, c.FreeTimeExpiresAt)
	assert.True(t, c.FreeTimeExpiresAt.Equal(out.AddDate(0, 0, 5)))
	assert.Equal(t, shipment.DemurrageOK, c.DemurrageStatus)
	assert.Equal(t, 1, c.Version)

	a, ok := store.Accrual(containerID)
	require.True(t, ok)
	assert.Equal(t, freetime.AccrualOpen, a.Status)
	assert.Equal(t, "MAEU", a.CarrierCode)

	again, err := svc.GateOut(ctx, containerID, out, out.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, again.Changed, "repeated gate-out is a no-op")
}

func TestGateOutFallsBackToDefaultRule(t *testing.T) {
	ctx := context.Background()
	svc, store, h := newTestService(t)
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	_, err := svc.GateOut(ctx, h.Containers[0].ID, out, out)
	require.NoError(t, err)

	a, ok := store.Accrual(h.Containers[0].ID)
	require.True(t, ok)
	assert.Equal(t, 5, a.FreeDays)
}

func TestGateInFinalizesBillableAccrual(t *testing.T) {
	ctx := context.Background()
	svc, store, h := newTestService(t)
	store.AddRule(*tieredRule())
	containerID := h.Containers[0].ID
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	_, err := svc.GateOut(ctx, containerID, out, out)
	require.NoError(t, err)
	_, err = svc.GateIn(ctx, containerID, out.Add(8*day))
	require.NoError(t, err)

	a, ok := store.Accrual(containerID)
	require.True(t, ok)
	assert.Equal(t, freetime.AccrualCalculated, a.Status)
	assert.Equal(t, 3, a.DaysOver)
	assert.True(t, decimal.NewFromInt(300).Equal(a.TotalCharge))
	assert.True(t, a.Billable())

	c := store.Container(containerID)
	assert.False(t, c.IsOut())
	assert.Equal(t, shipment.DemurrageOverdue, c.DemurrageStatus)
}

func TestGateInValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, h := newTestService(t)
	containerID := h.Containers[0].ID
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	_, err := svc.GateIn(ctx, containerID, out)
	require.ErrorIs(t, err, shipment.ErrGateOutMissing)

	_, err = svc.GateOut(ctx, containerID, out, out)
	require.NoError(t, err)
	_, err = svc.GateIn(ctx, containerID, out.Add(-time.Hour))
	require.ErrorIs(t, err, shipment.ErrGateInBeforeOut)
}

func TestReevaluateAdvancesStatus(t *testing.T) {
	ctx := context.Background()
	svc, store, h := newTestService(t)
	containerID := h.Containers[0].ID
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	_, err := svc.GateOut(ctx, containerID, out, out)
	require.NoError(t, err)

	c := store.Container(containerID)
	changed, err := svc.Reevaluate(ctx, &c, out.Add(108*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, shipment.DemurrageCritical, store.Container(containerID).DemurrageStatus)

	c = store.Container(containerID)
	changed, err = svc.Reevaluate(ctx, &c, out.Add(109*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReevaluateLosesToConcurrentGateIn(t *testing.T) {
	ctx := context.Background()
	svc, store, h := newTestService(t)
	containerID := h.Containers[0].ID
	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	_, err := svc.GateOut(ctx, containerID, out, out)
	require.NoError(t, err)

	stale := store.Container(containerID)
	_, err = svc.GateIn(ctx, containerID, out.Add(2*day))
	require.NoError(t, err)

	_, err = svc.Reevaluate(ctx, &stale, out.Add(6*day))
	require.ErrorIs(t, err, shipment.ErrVersionConflict)

	c := store.Container(containerID)
	assert.NotNil(t, c.GateInAt)
	assert.Equal(t, shipment.DemurrageOK, c.DemurrageStatus)
}
