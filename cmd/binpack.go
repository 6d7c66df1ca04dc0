package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/binpack"
	"github.com/allocsim/allocsim/sim/mask"
	"github.com/allocsim/allocsim/sim/trace"
)

// binpackCmd runs bin-packing episodes with a baseline policy.
var binpackCmd = &cobra.Command{
	Use:   "binpack",
	Short: "Run online bin-packing episodes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}
		rng := sim.NewPartitionedRNG(sim.Seed(cfg.Seed))
		opts, reg, err := newRun("binpack", cfg, rng, true)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		env, err := newBinPackingEnv(cfg, rng, continuous)
		if err != nil {
			logrus.Fatalf("building bin-packing engine: %v", err)
		}

		res, err := runEpisodes(env, opts, describeBinPacking)
		if err != nil {
			logrus.Fatalf("running episodes: %v", err)
		}
		if err := SaveResults(os.Stdout, res, resultsPath); err != nil {
			logrus.Fatalf("%v", err)
		}
		writeMetrics(reg)
	},
}

func newBinPackingEnv(cfg sim.EnvConfig, rng *sim.PartitionedRNG, useContinuous bool) (maskedEnv[binpack.Info], error) {
	if useContinuous {
		c, err := binpack.NewContinuous(cfg, rng)
		if err != nil {
			return nil, err
		}
		return mask.Wrap[binpack.Info](continuousAdapter{c}), nil
	}
	e, err := binpack.New(cfg, rng)
	if err != nil {
		return nil, err
	}
	return mask.Wrap[binpack.Info](e), nil
}

// continuousAdapter submits discrete choices through the continuous
// interface, at the center of each level's interval.
type continuousAdapter struct {
	*binpack.ContinuousEnv
}

func (c continuousAdapter) Step(action int) (sim.Transition[binpack.Info], error) {
	if action < 0 || action >= c.ActionCount() {
		return c.ContinuousEnv.Step(action)
	}
	return c.StepContinuous((float64(action) + 0.5) / float64(c.Capacity()-1))
}

func describeBinPacking(action int, tr mask.MaskedTransition[binpack.Info]) trace.StepRecord {
	return trace.StepRecord{
		Action:    action,
		Applied:   tr.Info.Applied,
		Penalized: tr.Info.Penalized,
	}
}
