package fixture

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Execution is the state of one Graph run: the artifacts produced so far
// and the order they were produced in.
type Execution[E any] struct {
	graph     *Graph[E]
	artifacts Artifacts
	completed []string

	teardownOnce sync.Once
	teardownErr  error
}

// FailedFixtureError identifies the fixture whose producer failed.
type FailedFixtureError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *FailedFixtureError) Error() string {
	return fmt.Sprintf("%s: fixture %q: %v", trellerrors.ErrFixtureFailed, e.ID, e.Err)
}

// Unwrap returns ErrFixtureFailed and the producer error.
func (e *FailedFixtureError) Unwrap() []error {
	return []error{trellerrors.ErrFixtureFailed, e.Err}
}

// Run executes every producer once, in setup order, and stops at the first
// failure. The returned Execution is never nil, so fixtures completed before
// a failure can still be torn down.
func (g *Graph[E]) Run(ctx context.Context, env E) (*Execution[E], error) {
	exec := &Execution[E]{graph: g, artifacts: make(Artifacts, len(g.order))}
	logger := zerolog.Ctx(ctx)

	for _, id := range g.order {
		if err := ctx.Err(); err != nil {
			return exec, &FailedFixtureError{ID: id, Err: context.Cause(ctx)}
		}

		node := g.nodes[id]
		deps := make(Artifacts, len(node.DependsOn))
		for _, dep := range node.DependsOn {
			deps[dep] = exec.artifacts[dep]
		}

		artifact, err := node.Produce(ctx, env, deps)
		if err != nil {
			logger.Debug().Str("fixture_id", id).Err(err).Msg("fixture failed")
			return exec, &FailedFixtureError{ID: id, Err: err}
		}
		exec.artifacts[id] = artifact
		exec.completed = append(exec.completed, id)
		logger.Debug().Str("fixture_id", id).Msg("fixture ready")
	}
	return exec, nil
}

// Artifacts returns a copy of the produced artifacts.
func (e *Execution[E]) Artifacts() Artifacts {
	return maps.Clone(e.artifacts)
}

// Artifact returns the artifact of one fixture.
func (e *Execution[E]) Artifact(id string) (Artifact, bool) {
	a, ok := e.artifacts[id]
	return a, ok
}

// Completed returns the ids of fixtures that produced successfully, in order.
func (e *Execution[E]) Completed() []string {
	return slices.Clone(e.completed)
}

// Teardown runs the teardown of every completed fixture in reverse setup
// order. Every teardown is attempted; their errors are joined. Only the
// first call does any work.
func (e *Execution[E]) Teardown(ctx context.Context, env E) error {
	e.teardownOnce.Do(func() {
		logger := zerolog.Ctx(ctx)
		var errs []error
		for i := len(e.completed) - 1; i >= 0; i-- {
			id := e.completed[i]
			node := e.graph.nodes[id]
			if node.Teardown == nil {
				continue
			}
			if err := node.Teardown(ctx, env, e.artifacts[id]); err != nil {
				logger.Warn().Str("fixture_id", id).Err(err).Msg("fixture teardown failed")
				errs = append(errs, fmt.Errorf("teardown fixture %q: %w", id, err))
			}
		}
		e.teardownErr = errors.Join(errs...)
	})
	return e.teardownErr
}
