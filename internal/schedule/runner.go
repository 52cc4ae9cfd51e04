// Package schedule runs many scenarios on a bounded worker pool.
//
// Scenarios are grouped into partitions. Partitions run in parallel, up to
// the configured concurrency; the scenarios of one partition run one after
// another. Partitioning by tenant keeps two scenarios that touch the same
// tenant from running at once; partitioning by capability keeps scenarios
// from contending for the same browser setup.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/orchestrator"
)

// ErrFailFast is the reason recorded on scenarios skipped after an earlier
// scenario failed in fail-fast mode.
var ErrFailFast = errors.New("skipped after an earlier failure (fail fast)")

// ScenarioRunner runs one scenario. *orchestrator.Orchestrator implements it.
type ScenarioRunner interface {
	Run(ctx context.Context, plan *orchestrator.Plan) domain.ScenarioResult
}

// Options configures a Runner.
type Options struct {
	// Concurrency is the number of partitions run in parallel.
	Concurrency int

	// Partition selects how scenarios are grouped.
	Partition constants.PartitionKey

	// FailFast skips every scenario that has not started once one fails or errors.
	FailFast bool

	Logger zerolog.Logger
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Concurrency < 1 || o.Concurrency > constants.MaxConcurrency {
		return fmt.Errorf("%w: concurrency %d not in 1..%d", trellerrors.ErrValueOutOfRange, o.Concurrency, constants.MaxConcurrency)
	}
	if !slices.Contains(constants.ValidPartitionKeys(), o.Partition) {
		return fmt.Errorf("%w: %q", trellerrors.ErrInvalidPartition, o.Partition)
	}
	return nil
}

// Runner dispatches scenarios across partitions.
type Runner struct {
	scenarios ScenarioRunner
	opts      Options
	logger    zerolog.Logger
}

// New creates a Runner. A zero Concurrency or Partition takes the default.
func New(scenarios ScenarioRunner, opts Options) (*Runner, error) {
	if scenarios == nil {
		return nil, fmt.Errorf("%w: scenario runner", trellerrors.ErrEmptyValue)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = constants.DefaultConcurrency
	}
	if opts.Partition == "" {
		opts.Partition = constants.PartitionTenant
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Runner{scenarios: scenarios, opts: opts, logger: opts.Logger}, nil
}

// Run executes every plan and returns one result per plan, in input order.
// Cancelling ctx stops scenarios at their next wait and skips the ones that
// have not started; every started scenario still tears down.
func (r *Runner) Run(ctx context.Context, plans []*orchestrator.Plan) []domain.ScenarioResult {
	results := make([]domain.ScenarioResult, len(plans))
	partitions := Partitions(plans, r.opts.Partition)

	r.logger.Info().
		Int("scenarios", len(plans)).
		Int("partitions", len(partitions)).
		Int("concurrency", r.opts.Concurrency).
		Str("partition", r.opts.Partition.String()).
		Msg("running scenarios")

	// Scenarios that have not started when fail fast triggers get a context
	// that is already done, so the orchestrator reports them skipped.
	stopped, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	var stopOnce sync.Once

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, part := range partitions {
		g.Go(func() error {
			logger := r.logger.With().Int("partition", i).Logger()
			logger.Debug().Int("scenarios", len(part)).Msg("partition started")
			for _, idx := range part {
				runCtx := ctx
				if stopped.Err() != nil {
					runCtx = stopped
				}
				res := r.scenarios.Run(runCtx, plans[idx])
				results[idx] = res
				if r.opts.FailFast && res.Unsuccessful() {
					stopOnce.Do(func() {
						logger.Warn().Str("scenario_id", res.ScenarioID).Msg("fail fast: skipping remaining scenarios")
						stop(ErrFailFast)
					})
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Partitions groups plan indices by key. Partitions are ordered by their
// first scenario and keep input order inside.
//
// With PartitionTenant, scenarios that touch a common tenant, including
// through a session opened for another tenant, land in the same partition.
func Partitions(plans []*orchestrator.Plan, key constants.PartitionKey) [][]int {
	switch key {
	case constants.PartitionTenant:
		return groupConnected(plans, func(p *orchestrator.Plan) []string { return p.TenantIDs() })
	case constants.PartitionCapability:
		return groupConnected(plans, func(p *orchestrator.Plan) []string { return []string{p.CapabilityKey()} })
	case constants.PartitionNone:
	}
	parts := make([][]int, len(plans))
	for i := range plans {
		parts[i] = []int{i}
	}
	return parts
}

// groupConnected merges plans that share any key, using union-find.
func groupConnected(plans []*orchestrator.Plan, keys func(*orchestrator.Plan) []string) [][]int {
	parent := make([]int, len(plans))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	owner := make(map[string]int)
	for i, p := range plans {
		for _, k := range keys(p) {
			if j, ok := owner[k]; ok {
				a, b := find(i), find(j)
				if a != b {
					// The root is always the earliest index.
					parent[max(a, b)] = min(a, b)
				}
				continue
			}
			owner[k] = i
		}
	}

	index := make(map[int]int)
	var parts [][]int
	for i := range plans {
		root := find(i)
		n, ok := index[root]
		if !ok {
			n = len(parts)
			index[root] = n
			parts = append(parts, nil)
		}
		parts[n] = append(parts[n], i)
	}
	return parts
}
