// Package fixture resolves scenario setup steps that depend on each other.
//
// A Graph is built once, when the suite loads, and rejects cycles there.
// Each run executes every producer exactly once in dependency order and
// tears the produced artifacts down in the exact reverse order.
package fixture

import (
	"context"
	"fmt"
	"strings"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Artifact is the opaque value a fixture produces, such as the id of a
// resource created through the API.
type Artifact = any

// Artifacts maps fixture ids to the artifacts they produced.
type Artifacts map[string]Artifact

// ProduceFunc creates a fixture. deps holds only the artifacts of the
// node's declared dependencies.
type ProduceFunc[E any] func(ctx context.Context, env E, deps Artifacts) (Artifact, error)

// TeardownFunc releases what ProduceFunc created.
type TeardownFunc[E any] func(ctx context.Context, env E, artifact Artifact) error

// Node is one fixture. E is the per-run environment handed to producers,
// for example the scenario's open sessions.
type Node[E any] struct {
	ID        string
	DependsOn []string
	Produce   ProduceFunc[E]
	Teardown  TeardownFunc[E]
}

// Graph is a validated, topologically ordered set of fixtures.
type Graph[E any] struct {
	nodes map[string]Node[E]
	order []string
}

// Build validates nodes and computes their execution order. Ties are broken
// by declaration order so runs are deterministic.
func Build[E any](nodes ...Node[E]) (*Graph[E], error) {
	g := &Graph[E]{nodes: make(map[string]Node[E], len(nodes))}
	declared := make([]string, 0, len(nodes))

	for _, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			return nil, fmt.Errorf("%w: fixture id", trellerrors.ErrEmptyValue)
		}
		if n.Produce == nil {
			return nil, fmt.Errorf("%w: fixture %q has no producer", trellerrors.ErrInvalidScenario, n.ID)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: fixture %q", trellerrors.ErrDuplicateID, n.ID)
		}
		g.nodes[n.ID] = n
		declared = append(declared, n.ID)
	}

	for _, id := range declared {
		for _, dep := range g.nodes[id].DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: fixture %q depends on %q", trellerrors.ErrUnknownDependency, id, dep)
			}
		}
	}

	order, err := topoSort(g.nodes, declared)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoSort orders ids with Kahn's algorithm. When nodes remain unordered
// the graph has a cycle, which is located and reported.
func topoSort[E any](nodes map[string]Node[E], declared []string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, id := range declared {
		seen := make(map[string]bool)
		for _, dep := range nodes[id].DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	order := make([]string, 0, len(declared))
	done := make(map[string]bool, len(declared))
	for len(order) < len(declared) {
		progressed := false
		for _, id := range declared {
			if done[id] || indegree[id] > 0 {
				continue
			}
			done[id] = true
			order = append(order, id)
			for _, next := range dependents[id] {
				indegree[next]--
			}
			progressed = true
			// Restart from the top so earlier declarations win ties.
			break
		}
		if !progressed {
			return nil, fmt.Errorf("%w: %s", trellerrors.ErrCyclicDependency, strings.Join(findCycle(nodes, declared, done), " -> "))
		}
	}
	return order, nil
}

// findCycle walks dependencies from the first unordered node until a node
// repeats, and returns the cycle closed on itself.
func findCycle[E any](nodes map[string]Node[E], declared []string, done map[string]bool) []string {
	var start string
	for _, id := range declared {
		if !done[id] {
			start = id
			break
		}
	}

	index := make(map[string]int)
	var path []string
	cur := start
	for {
		if i, seen := index[cur]; seen {
			return append(path[i:], cur)
		}
		index[cur] = len(path)
		path = append(path, cur)
		for _, dep := range nodes[cur].DependsOn {
			if !done[dep] {
				cur = dep
				break
			}
		}
	}
}

// Order returns the setup order.
func (g *Graph[E]) Order() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of fixtures.
func (g *Graph[E]) Len() int {
	return len(g.order)
}

// DependsOn returns the declared dependencies of id.
func (g *Graph[E]) DependsOn(id string) []string {
	return append([]string(nil), g.nodes[id].DependsOn...)
}
