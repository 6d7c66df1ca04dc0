package binpack

import (
	"fmt"
	"math"

	"github.com/allocsim/allocsim/sim"
)

// ContinuousEnv exposes bin packing over the action interval [0, 1]. A
// submitted value is clipped to [0, 1], scaled by capacity-1 and truncated to
// a fill level, which is then repaired to the nearest legal level.
type ContinuousEnv struct {
	*Engine
}

// NewContinuous builds a continuous-action engine. The action repair option
// is forced to nearest.
func NewContinuous(cfg sim.EnvConfig, rng *sim.PartitionedRNG, opts ...Option) (*ContinuousEnv, error) {
	cfg.ActionRepair = sim.RepairNearest
	e, err := New(cfg, rng, append(opts, WithResolver(Nearest{}))...)
	if err != nil {
		return nil, err
	}
	return &ContinuousEnv{Engine: e}, nil
}

// Level maps a continuous action to a discrete fill level.
func (c *ContinuousEnv) Level(action float64) int {
	action = math.Max(0, math.Min(1, action))
	return int(action * float64(c.capacity-1))
}

// StepContinuous applies a continuous action. NaN is rejected as an invalid action.
func (c *ContinuousEnv) StepContinuous(action float64) (sim.Transition[Info], error) {
	if math.IsNaN(action) {
		return sim.Transition[Info]{}, fmt.Errorf("%w: NaN continuous action", sim.ErrInvalidAction)
	}
	return c.Engine.Step(c.Level(action))
}

// Bounds returns the continuous action interval.
func (c *ContinuousEnv) Bounds() (low, high float64) { return 0, 1 }
