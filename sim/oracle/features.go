package oracle

import (
	"fmt"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/mask"
	"github.com/allocsim/allocsim/sim/matching"
)

// FeatureEnv is a masked matching engine whose observations end with the
// probability row of the current arrival.
type FeatureEnv struct {
	engine *matching.Engine
	masked *mask.Env[matching.Info]
	table  *Table
}

// NewFeatureEnv decorates e with the rows of t. The table must match the
// engine's graph sizes.
func NewFeatureEnv(e *matching.Engine, t *Table) (*FeatureEnv, error) {
	g := e.Graph()
	if t.Online() != g.Online() || t.Offline() != g.Offline() {
		return nil, fmt.Errorf("%w: probability table is %dx%d, graph is %dx%d",
			sim.ErrInvalidConfig, t.Online(), t.Offline(), g.Online(), g.Offline())
	}
	return &FeatureEnv{engine: e, masked: mask.Wrap[matching.Info](e), table: t}, nil
}

// Engine returns the decorated matching engine.
func (f *FeatureEnv) Engine() *matching.Engine { return f.engine }

func (f *FeatureEnv) ActionCount() int { return f.masked.ActionCount() }

func (f *FeatureEnv) Reset() mask.Masked {
	m := f.masked.Reset()
	m.Observation = f.extend(m.Observation)
	return m
}

func (f *FeatureEnv) Step(action int) (mask.MaskedTransition[matching.Info], error) {
	tr, err := f.masked.Step(action)
	if err != nil {
		return tr, err
	}
	if tr.Observation != nil {
		tr.Observation = f.extend(tr.Observation)
	}
	return tr, nil
}

func (f *FeatureEnv) extend(obs sim.Observation) sim.Observation {
	return append(obs, f.table.Row(f.engine.OnlineType())...)
}
