package propagation

import (
	"context"
	"testing"
	"time"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/testutil/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 1, 2)
	store.SetOrderStatus(h.Orders[0][0].ID, shipment.OrderDispatched)

	rule := NewContainerRule(store)

	first, err := rule.Recompute(ctx, h.Containers[0].ID)
	require.NoError(t, err)
	assert.True(t, first.Written)
	assert.Equal(t, string(shipment.LifecyclePickedUp), first.Status)

	second, err := rule.Recompute(ctx, h.Containers[0].ID)
	require.NoError(t, err)
	assert.False(t, second.Written, "unchanged children must not cause a write")
	assert.Equal(t, first.Status, second.Status)
}

func TestHierarchyAggregatesMatchChildren(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 2, 2)
	g, err := NewHierarchy(store)
	require.NoError(t, err)

	store.SetOrderStatus(h.Orders[0][0].ID, shipment.OrderCompleted)
	store.SetOrderStatus(h.Orders[0][1].ID, shipment.OrderCompleted)
	store.SetOrderStatus(h.Orders[1][0].ID, shipment.OrderCompleted)

	_, err = g.Propagate(ctx,
		Node{Kind: KindOrder, ID: h.Orders[0][0].ID},
		Node{Kind: KindOrder, ID: h.Orders[0][1].ID},
		Node{Kind: KindOrder, ID: h.Orders[1][0].ID},
	)
	require.NoError(t, err)

	s := store.Shipment(h.Shipment.ID)
	assert.Equal(t, shipment.ShipmentInProgress, s.Status)
	assert.Equal(t, 2, s.TotalContainers)
	assert.Equal(t, 1, s.CompletedContainers)
	assert.Equal(t, 4, s.TotalOrders)
	assert.Equal(t, 3, s.CompletedOrders)
	assert.Equal(t, shipment.LifecycleCompleted, store.Container(h.Containers[0].ID).LifecycleStatus)
	assert.Equal(t, shipment.LifecycleDelivered, store.Container(h.Containers[1].ID).LifecycleStatus)

	store.SetOrderStatus(h.Orders[1][1].ID, shipment.OrderCompleted)
	changes, err := g.Propagate(ctx, Node{Kind: KindOrder, ID: h.Orders[1][1].ID})
	require.NoError(t, err)
	require.Len(t, changes, 2)

	s = store.Shipment(h.Shipment.ID)
	assert.Equal(t, shipment.ShipmentCompleted, s.Status)
	assert.Equal(t, s.TotalContainers, s.CompletedContainers)
	assert.Equal(t, 4, s.CompletedOrders)
}

func TestOrderCountersUpdateWithoutLifecycleChange(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 1, 3)
	g, err := NewHierarchy(store)
	require.NoError(t, err)

	store.SetOrderStatus(h.Orders[0][0].ID, shipment.OrderCompleted)
	_, err = g.Propagate(ctx, Node{Kind: KindOrder, ID: h.Orders[0][0].ID})
	require.NoError(t, err)
	require.Equal(t, shipment.LifecycleDelivered, store.Container(h.Containers[0].ID).LifecycleStatus)

	store.SetOrderStatus(h.Orders[0][1].ID, shipment.OrderCompleted)
	changes, err := g.Propagate(ctx, Node{Kind: KindOrder, ID: h.Orders[0][1].ID})
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, KindShipment, changes[0].Kind)
	assert.False(t, changes[0].StatusChanged)
	assert.Equal(t, 2, store.Shipment(h.Shipment.ID).CompletedOrders)
}

func TestInvoicedOrdersStillCountAsCompleted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 1, 1)
	g, err := NewHierarchy(store)
	require.NoError(t, err)

	store.SetOrderStatus(h.Orders[0][0].ID, shipment.OrderInvoiced)
	_, err = g.Propagate(ctx, Node{Kind: KindOrder, ID: h.Orders[0][0].ID})
	require.NoError(t, err)

	assert.Equal(t, shipment.LifecycleCompleted, store.Container(h.Containers[0].ID).LifecycleStatus)
	assert.Equal(t, shipment.ShipmentCompleted, store.Shipment(h.Shipment.ID).Status)
}

func TestLastFreeDayTracksEarliestOpenContainer(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 2, 1)
	g, err := NewHierarchy(store)
	require.NoError(t, err)

	out := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	early, late := out.AddDate(0, 0, 4), out.AddDate(0, 0, 6)
	for i, exp := range []time.Time{late, early} {
		c := store.Container(h.Containers[i].ID)
		c.GateOutAt = &out
		exp := exp
		c.FreeTimeExpiresAt = &exp
		store.AddContainer(c)
	}

	_, err = g.Propagate(ctx, Node{Kind: KindContainer, ID: h.Containers[1].ID})
	require.NoError(t, err)

	s := store.Shipment(h.Shipment.ID)
	require.NotNil(t, s.LastFreeDay)
	assert.True(t, s.LastFreeDay.Equal(early))
}

func TestMissingShipmentIsInconsistentParent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	h := store.SeedHierarchy(nil, "MSC", 1, 1)
	store.RemoveShipment(h.Shipment.ID)
	g, err := NewHierarchy(store)
	require.NoError(t, err)

	_, err = g.Propagate(ctx, Node{Kind: KindOrder, ID: h.Orders[0][0].ID})
	require.ErrorIs(t, err, shipment.ErrInconsistentParent)
}
