// Package propagation keeps derived parent state consistent with children.
//
// The hierarchy is modelled as a small DAG of node kinds. Each kind may carry
// a Recomputer that rebuilds the node's derived fields from its children, and
// each edge knows how to find a node's parents. Propagate visits dirty nodes
// in topological order, so every node is recomputed at most once per call and
// always after all of its children.
package propagation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOrder     Kind = "ORDER"
	KindContainer Kind = "CONTAINER"
	KindShipment  Kind = "SHIPMENT"
)

type Node struct {
	Kind Kind
	ID   uuid.UUID
}

// Result reports what a recomputation wrote.
type Result struct {
	Written       bool
	StatusChanged bool
	Status        string
}

// Change is a node whose derived fields were written during propagation.
type Change struct {
	Node
	Result
}

// Recomputer rebuilds one node's derived fields from the current state of
// its children. It must be idempotent and write nothing when the derived
// values are unchanged.
type Recomputer interface {
	Recompute(ctx context.Context, id uuid.UUID) (Result, error)
}

// ParentResolver returns the parents of a node along one edge.
type ParentResolver func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

type edge struct {
	to      Kind
	resolve ParentResolver
}

type Graph struct {
	kinds []Kind
	rules map[Kind]Recomputer
	edges map[Kind][]edge
	order []Kind
}

func NewGraph() *Graph {
	return &Graph{
		rules: make(map[Kind]Recomputer),
		edges: make(map[Kind][]edge),
	}
}

// AddNode registers a kind. A nil Recomputer marks a source-only kind whose
// rows are mutated directly and never derived.
func (g *Graph) AddNode(kind Kind, r Recomputer) *Graph {
	if _, exists := g.rules[kind]; !exists {
		g.kinds = append(g.kinds, kind)
	}
	g.rules[kind] = r
	return g
}

func (g *Graph) AddEdge(from, to Kind, resolve ParentResolver) *Graph {
	g.edges[from] = append(g.edges[from], edge{to: to, resolve: resolve})
	return g
}

// Build validates edges and fixes the visit order with Kahn's algorithm.
func (g *Graph) Build() error {
	indegree := make(map[Kind]int, len(g.kinds))
	for _, k := range g.kinds {
		indegree[k] = 0
	}
	for from, edges := range g.edges {
		if _, ok := indegree[from]; !ok {
			return fmt.Errorf("propagation: edge from unknown kind %s", from)
		}
		for _, e := range edges {
			if _, ok := indegree[e.to]; !ok {
				return fmt.Errorf("propagation: edge to unknown kind %s", e.to)
			}
			indegree[e.to]++
		}
	}

	var queue []Kind
	for _, k := range g.kinds {
		if indegree[k] == 0 {
			queue = append(queue, k)
		}
	}

	order := make([]Kind, 0, len(g.kinds))
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		order = append(order, k)
		for _, e := range g.edges[k] {
			indegree[e.to]--
			if indegree[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}

	if len(order) != len(g.kinds) {
		return fmt.Errorf("propagation: dependency cycle among %v", g.kinds)
	}
	g.order = order
	return nil
}

// Order returns the visit order fixed by Build.
func (g *Graph) Order() []Kind {
	return append([]Kind(nil), g.order...)
}

// Propagate recomputes everything downstream of the seed nodes. Parents of a
// seed are always visited; parents of a derived node only when it was written.
// The first error aborts the walk and is returned as is, so the caller's
// transaction can roll back the whole cascade.
func (g *Graph) Propagate(ctx context.Context, seeds ...Node) ([]Change, error) {
	if g.order == nil {
		return nil, fmt.Errorf("propagation: graph not built")
	}

	dirty := make(map[Kind][]uuid.UUID, len(g.order))
	seen := make(map[Node]bool)
	seeded := make(map[Node]bool, len(seeds))
	mark := func(n Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		dirty[n.Kind] = append(dirty[n.Kind], n.ID)
	}
	for _, s := range seeds {
		if _, ok := g.rules[s.Kind]; !ok {
			return nil, fmt.Errorf("propagation: unknown kind %s", s.Kind)
		}
		seeded[s] = true
		mark(s)
	}

	var changes []Change
	for _, kind := range g.order {
		rule := g.rules[kind]
		for _, id := range dirty[kind] {
			node := Node{Kind: kind, ID: id}

			var res Result
			if rule != nil {
				var err error
				res, err = rule.Recompute(ctx, id)
				if err != nil {
					return nil, err
				}
				if res.Written {
					changes = append(changes, Change{Node: node, Result: res})
				}
			}

			if !seeded[node] && !res.Written {
				continue
			}
			for _, e := range g.edges[kind] {
				parents, err := e.resolve(ctx, id)
				if err != nil {
					return nil, err
				}
				for _, p := range parents {
					mark(Node{Kind: e.to, ID: p})
				}
			}
		}
	}

	return changes, nil
}
