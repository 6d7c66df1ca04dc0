// Package oracle estimates, for every (online, offline) pair of a matching
// graph, how often an offline-optimal matching pairs them, and caches the
// estimate next to the graph file.
package oracle

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/arrival"
	"github.com/allocsim/allocsim/sim/graph"
)

// Solver computes a maximum matching of a realized arrival sequence. The
// result holds, per arrival index, the matched offline vertex or -1.
// Implementations must be safe for concurrent use.
type Solver interface {
	Solve(ctx context.Context, g *graph.Graph, arrivals []int) ([]int, error)
}

// Builder samples Samples realizations of RealizationSize uniform arrivals
// and solves them on up to Workers goroutines.
type Builder struct {
	Samples         int
	RealizationSize int
	Workers         int
	Solver          Solver
}

// NewBuilder reads sampling options from a defaulted matching config.
func NewBuilder(cfg sim.EnvConfig, s Solver) Builder {
	return Builder{
		Samples:         cfg.Samples,
		RealizationSize: cfg.RealizationSize,
		Workers:         cfg.Workers,
		Solver:          s,
	}
}

// Build estimates the probability table of g: entry (v, u) is the fraction
// of the Samples realizations in which the solver matched an arrival of
// online vertex v to offline vertex u. Realizations are drawn in order from
// the oracle stream of rng, so the table depends only on the seed.
func (b Builder) Build(ctx context.Context, g *graph.Graph, rng *sim.PartitionedRNG) (*Table, error) {
	if b.Samples <= 0 || b.RealizationSize <= 0 {
		return nil, fmt.Errorf("%w: oracle needs positive samples and realization_size, got %d and %d",
			sim.ErrInvalidConfig, b.Samples, b.RealizationSize)
	}
	if b.Solver == nil {
		return nil, fmt.Errorf("%w: oracle has no solver", sim.ErrInvalidConfig)
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	src := rng.ForSubsystem(sim.SubsystemOracle)
	realizations := make([][]int, b.Samples)
	for i := range realizations {
		realizations[i] = arrival.Realize(src, g.Online(), b.RealizationSize)
	}

	results := make([][]int, b.Samples)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range realizations {
		i := i
		eg.Go(func() error {
			match, err := b.Solver.Solve(egCtx, g, realizations[i])
			if err != nil {
				return fmt.Errorf("realization %d: %w", i, err)
			}
			if len(match) != len(realizations[i]) {
				return fmt.Errorf("realization %d: solver returned %d entries for %d arrivals", i, len(match), len(realizations[i]))
			}
			results[i] = match
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	counts := make([][]int, g.Online())
	for v := range counts {
		counts[v] = make([]int, g.Offline())
	}
	for i, match := range results {
		for t, u := range match {
			v := realizations[i][t]
			if u < 0 {
				continue
			}
			if u >= g.Offline() || !g.Adjacent(v, u) {
				return nil, fmt.Errorf("realization %d: solver matched online %d to non-neighbor %d", i, v, u)
			}
			counts[v][u]++
		}
	}

	t := NewTable(g.Online(), g.Offline())
	for v, row := range counts {
		for u, c := range row {
			if c > 0 {
				t.p[v][u] = float64(c) / float64(b.Samples)
			}
		}
	}
	logrus.Infof("oracle: solved %d realizations of %d arrivals on %d workers", b.Samples, b.RealizationSize, workers)
	return t, nil
}
