package propagation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRule struct {
	kind    Kind
	written bool
	err     error
	calls   *[]Node
}

func (r *recordingRule) Recompute(_ context.Context, id uuid.UUID) (Result, error) {
	*r.calls = append(*r.calls, Node{Kind: r.kind, ID: id})
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Written: r.written, Status: "X"}, nil
}

func fixedParent(id uuid.UUID) ParentResolver {
	return func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
		return []uuid.UUID{id}, nil
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	g := NewGraph().
		AddNode(KindOrder, nil).
		AddNode(KindContainer, nil).
		AddEdge(KindOrder, KindContainer, fixedParent(uuid.New())).
		AddEdge(KindContainer, KindOrder, fixedParent(uuid.New()))

	err := g.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	g := NewGraph().
		AddNode(KindOrder, nil).
		AddEdge(KindOrder, KindShipment, fixedParent(uuid.New()))

	require.Error(t, g.Build())
}

func TestPropagateVisitsChildrenBeforeParents(t *testing.T) {
	var calls []Node
	containerID, shipmentID := uuid.New(), uuid.New()

	// Registered out of order on purpose.
	g := NewGraph().
		AddNode(KindShipment, &recordingRule{kind: KindShipment, written: true, calls: &calls}).
		AddNode(KindContainer, &recordingRule{kind: KindContainer, written: true, calls: &calls}).
		AddNode(KindOrder, nil).
		AddEdge(KindContainer, KindShipment, fixedParent(shipmentID)).
		AddEdge(KindOrder, KindContainer, fixedParent(containerID)).
		AddEdge(KindOrder, KindShipment, fixedParent(shipmentID))
	require.NoError(t, g.Build())
	assert.Equal(t, []Kind{KindOrder, KindContainer, KindShipment}, g.Order())

	changes, err := g.Propagate(context.Background(), Node{Kind: KindOrder, ID: uuid.New()})
	require.NoError(t, err)

	// The shipment is reachable over two edges but is recomputed once.
	assert.Equal(t, []Node{
		{Kind: KindContainer, ID: containerID},
		{Kind: KindShipment, ID: shipmentID},
	}, calls)
	assert.Len(t, changes, 2)
}

func TestPropagateStopsAtUnchangedNode(t *testing.T) {
	var calls []Node
	g := NewGraph().
		AddNode(KindContainer, &recordingRule{kind: KindContainer, written: false, calls: &calls}).
		AddNode(KindShipment, &recordingRule{kind: KindShipment, written: true, calls: &calls}).
		AddNode(KindOrder, nil).
		AddEdge(KindOrder, KindContainer, fixedParent(uuid.New())).
		AddEdge(KindContainer, KindShipment, fixedParent(uuid.New()))
	require.NoError(t, g.Build())

	changes, err := g.Propagate(context.Background(), Node{Kind: KindOrder, ID: uuid.New()})
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, KindContainer, calls[0].Kind)
	assert.Empty(t, changes)
}

func TestPropagateSeededNodeAlwaysReachesParents(t *testing.T) {
	var calls []Node
	shipmentID := uuid.New()
	g := NewGraph().
		AddNode(KindContainer, &recordingRule{kind: KindContainer, written: false, calls: &calls}).
		AddNode(KindShipment, &recordingRule{kind: KindShipment, written: false, calls: &calls}).
		AddEdge(KindContainer, KindShipment, fixedParent(shipmentID))
	require.NoError(t, g.Build())

	_, err := g.Propagate(context.Background(), Node{Kind: KindContainer, ID: uuid.New()})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, Node{Kind: KindShipment, ID: shipmentID}, calls[1])
}

func TestPropagateAbortsOnError(t *testing.T) {
	var calls []Node
	boom := errors.New("boom")
	g := NewGraph().
		AddNode(KindOrder, nil).
		AddNode(KindContainer, &recordingRule{kind: KindContainer, err: boom, calls: &calls}).
		AddNode(KindShipment, &recordingRule{kind: KindShipment, written: true, calls: &calls}).
		AddEdge(KindOrder, KindContainer, fixedParent(uuid.New())).
		AddEdge(KindContainer, KindShipment, fixedParent(uuid.New()))
	require.NoError(t, g.Build())

	_, err := g.Propagate(context.Background(), Node{Kind: KindOrder, ID: uuid.New()})
	require.ErrorIs(t, err, boom)
	assert.Len(t, calls, 1)
}

func TestPropagateRequiresBuild(t *testing.T) {
	_, err := NewGraph().AddNode(KindOrder, nil).Propagate(context.Background(), Node{Kind: KindOrder, ID: uuid.New()})
	require.Error(t, err)
}
