package propagation

import (
	"context"
	"drayage-tms/internal/domain/shipment"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContainerRule derives Container.lifecycle_status from its orders.
type ContainerRule struct {
	repo shipment.Repository
}

func NewContainerRule(repo shipment.Repository) *ContainerRule {
	return &ContainerRule{repo: repo}
}

func (r *ContainerRule) Recompute(ctx context.Context, id uuid.UUID) (Result, error) {
	c, err := r.repo.GetContainerForUpdate(ctx, id)
	if errors.Is(err, shipment.ErrContainerNotFound) {
		return Result{}, fmt.Errorf("%w: container %s", shipment.ErrInconsistentParent, id)
	}
	if err != nil {
		return Result{}, err
	}

	counts, err := r.repo.AggregateContainerOrders(ctx, id)
	if err != nil {
		return Result{}, err
	}

	next := DeriveLifecycle(*counts)
	if next == c.LifecycleStatus {
		return Result{Status: string(next)}, nil
	}

	if err := r.repo.UpdateContainerLifecycle(ctx, id, next); err != nil {
		return Result{}, err
	}
	return Result{Written: true, StatusChanged: true, Status: string(next)}, nil
}

// ShipmentRule derives Shipment status, counters and last free day.
type ShipmentRule struct {
	repo shipment.Repository
}

func NewShipmentRule(repo shipment.Repository) *ShipmentRule {
	return &ShipmentRule{repo: repo}
}

func (r *ShipmentRule) Recompute(ctx context.Context, id uuid.UUID) (Result, error) {
	s, err := r.repo.GetShipmentForUpdate(ctx, id)
	if errors.Is(err, shipment.ErrShipmentNotFound) {
		return Result{}, fmt.Errorf("%w: shipment %s", shipment.ErrInconsistentParent, id)
	}
	if err != nil {
		return Result{}, err
	}

	counts, err := r.repo.AggregateShipment(ctx, id)
	if err != nil {
		return Result{}, err
	}

	next := *s
	next.Status = DeriveShipmentStatus(*counts, s.Status)
	next.TotalContainers = counts.TotalContainers
	next.CompletedContainers = counts.CompletedContainers
	next.TotalOrders = counts.Orders.Total
	next.CompletedOrders = counts.Orders.Completed
	next.LastFreeDay = counts.EarliestFreeTimeEnd

	if sameAggregates(s, &next) {
		return Result{Status: string(s.Status)}, nil
	}

	if err := r.repo.UpdateShipmentAggregates(ctx, &next); err != nil {
		return Result{}, err
	}
	return Result{
		Written:       true,
		StatusChanged: next.Status != s.Status,
		Status:        string(next.Status),
	}, nil
}

func sameAggregates(a, b *shipment.Shipment) bool {
	return a.Status == b.Status &&
		a.TotalContainers == b.TotalContainers &&
		a.CompletedContainers == b.CompletedContainers &&
		a.TotalOrders == b.TotalOrders &&
		a.CompletedOrders == b.CompletedOrders &&
		sameTime(a.LastFreeDay, b.LastFreeDay)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// NewHierarchy wires Order -> Container -> Shipment plus the direct
// Order -> Shipment edge that carries order counters when a container's
// lifecycle does not move.
func NewHierarchy(repo shipment.Repository) (*Graph, error) {
	orderParent := func(pick func(o *shipment.Order) uuid.UUID) ParentResolver {
		return func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
			o, err := repo.GetOrder(ctx, id)
			if err != nil {
				return nil, err
			}
			return []uuid.UUID{pick(o)}, nil
		}
	}
	containerParent := func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
		c, err := repo.GetContainer(ctx, id)
		if errors.Is(err, shipment.ErrContainerNotFound) {
			return nil, fmt.Errorf("%w: container %s", shipment.ErrInconsistentParent, id)
		}
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{c.ShipmentID}, nil
	}

	g := NewGraph().
		AddNode(KindOrder, nil).
		AddNode(KindContainer, NewContainerRule(repo)).
		AddNode(KindShipment, NewShipmentRule(repo)).
		AddEdge(KindOrder, KindContainer, orderParent(func(o *shipment.Order) uuid.UUID { return o.ContainerID })).
		AddEdge(KindOrder, KindShipment, orderParent(func(o *shipment.Order) uuid.UUID { return o.ShipmentID })).
		AddEdge(KindContainer, KindShipment, containerParent)

	if err := g.Build(); err != nil {
		return nil, err
	}
	return g, nil
}
