package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/graph"
	"github.com/allocsim/allocsim/sim/mask"
	"github.com/allocsim/allocsim/sim/matching"
	"github.com/allocsim/allocsim/sim/metrics"
	"github.com/allocsim/allocsim/sim/oracle"
	"github.com/allocsim/allocsim/sim/solver"
	"github.com/allocsim/allocsim/sim/trace"
)

// matchCmd runs online matching episodes with a baseline policy.
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run online bipartite-matching episodes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}
		rng := sim.NewPartitionedRNG(sim.Seed(cfg.Seed))
		opts, reg, err := newRun("matching", cfg, rng, false)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		env, err := newMatchingEnv(cmd.Context(), cfg, rng, features, opts.Recorder)
		if err != nil {
			logrus.Fatalf("building matching engine: %v", err)
		}

		res, err := runEpisodes(env, opts, describeMatching)
		if err != nil {
			logrus.Fatalf("running episodes: %v", err)
		}
		if err := SaveResults(os.Stdout, res, resultsPath); err != nil {
			logrus.Fatalf("%v", err)
		}
		writeMetrics(reg)
	},
}

func newMatchingEnv(ctx context.Context, cfg sim.EnvConfig, rng *sim.PartitionedRNG, withFeatures bool, rec *metrics.Recorder) (maskedEnv[matching.Info], error) {
	e, err := matching.NewFromConfig(cfg, rng)
	if err != nil {
		return nil, err
	}
	if !withFeatures {
		return mask.Wrap[matching.Info](e), nil
	}
	table, err := probabilityTable(ctx, cfg, e.Graph(), rng, rec)
	if err != nil {
		return nil, err
	}
	return oracle.NewFeatureEnv(e, table)
}

// probabilityTable loads or builds the oracle table of g. Tables of graph
// files are cached beside the file; other graphs are built in memory.
func probabilityTable(ctx context.Context, cfg sim.EnvConfig, g *graph.Graph, rng *sim.PartitionedRNG, rec *metrics.Recorder) (*oracle.Table, error) {
	cfg.Offline, cfg.Online = g.Offline(), g.Online()
	b := oracle.NewBuilder(cfg.WithMatchingDefaults(), solver.HopcroftKarp{})
	if cfg.GraphFile == "" {
		return b.Build(ctx, g, rng)
	}
	table, hit, err := oracle.LoadOrBuild(ctx, graph.CachePath(cfg.GraphFile), g, b, rng)
	if err != nil {
		return nil, err
	}
	if hit && rec != nil {
		rec.ObserveCacheHit()
	}
	return table, nil
}

func describeMatching(action int, tr mask.MaskedTransition[matching.Info]) trace.StepRecord {
	return trace.StepRecord{
		Action:  action,
		Applied: action,
		Matched: tr.Info.Matched != matching.NoMatch,
	}
}
