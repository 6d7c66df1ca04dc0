package binpack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/arrival"
)

func newScripted(t *testing.T, cfg sim.EnvConfig, items ...int) *Engine {
	t.Helper()
	e, err := New(cfg, sim.NewPartitionedRNG(1), WithItemSampler(arrival.NewScripted(items...)))
	require.NoError(t, err)
	return e
}

func TestEngine_ConcreteScenario(t *testing.T) {
	// GIVEN capacity 9, horizon 3 and the item sequence [2, 3, 2]
	cfg := sim.EnvConfig{BagCapacity: 9, ItemSizes: []int{2, 3}, ItemProbabilities: []float64{0.8, 0.2}, TimeHorizon: 3}
	e := newScripted(t, cfg, 2, 3, 2)

	obs := e.Reset()
	assert.Equal(t, sim.Observation{0, 0, 0, 0, 0, 0, 0, 0, 0, 2}, obs)

	// WHEN the item of size 2 opens a bin
	tr, err := e.Step(0)
	require.NoError(t, err)
	// THEN reward is -(9-2) and one bin sits at level 2
	assert.Equal(t, -7.0, tr.Reward)
	assert.False(t, tr.Done)
	assert.Equal(t, 1, e.Levels()[2])
	assert.Equal(t, 3, e.ItemSize())

	// WHEN the item of size 3 opens a bin
	tr, err = e.Step(0)
	require.NoError(t, err)
	assert.Equal(t, -6.0, tr.Reward)
	assert.Equal(t, 1, e.Levels()[3])

	// WHEN the item of size 2 joins the level-2 bin
	tr, err = e.Step(2)
	require.NoError(t, err)
	// THEN waste is -2, the reward +2 and the horizon is exhausted
	assert.Equal(t, 2.0, tr.Reward)
	assert.True(t, tr.Done)
	assert.Equal(t, -2, e.Waste())
	levels := e.Levels()
	assert.Equal(t, 0, levels[2])
	assert.Equal(t, 1, levels[3])
	assert.Equal(t, 1, levels[4])
	assert.Equal(t, map[int]map[string]int{3: {"3": 1}, 4: {"2 2": 1}}, tr.Info.BinTypes)
	assert.Equal(t, -11.0, e.TotalReward())
}

func TestEngine_FullBinLeavesLevels(t *testing.T) {
	cfg := sim.EnvConfig{BagCapacity: 4, ItemSizes: []int{2}, TimeHorizon: 10}
	e := newScripted(t, cfg, 2)
	e.Reset()

	_, err := e.Step(0)
	require.NoError(t, err)
	tr, err := e.Step(2)
	require.NoError(t, err)

	assert.Equal(t, 2.0, tr.Reward)
	assert.Equal(t, []int{0, 0, 0, 0}, e.Levels())
	assert.Equal(t, 1, e.NumFullBins())
	assert.Empty(t, tr.Info.BinTypes)
	assert.Equal(t, map[string]int{"2 2": 1}, tr.Info.FullBinTypes)
}

func TestEngine_ViolationPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		action   int
		wantDone bool
	}{
		{"strict overflow", sim.OverflowStrict, 8, true},
		{"strict empty level", sim.OverflowStrict, 3, true},
		{"incremental overflow", sim.OverflowIncremental, 8, false},
		{"incremental empty level", sim.OverflowIncremental, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN one open bin at level 2 (waste 7)
			cfg := sim.EnvConfig{BagCapacity: 9, ItemSizes: []int{2}, TimeHorizon: 10, OverflowPolicy: tt.policy}
			e := newScripted(t, cfg, 2)
			e.Reset()
			_, err := e.Step(0)
			require.NoError(t, err)
			before := e.Levels()

			// WHEN the next item is misplaced
			tr, err := e.Step(tt.action)
			require.NoError(t, err)

			// THEN the penalty is offset by the last waste and the state is untouched
			assert.Equal(t, float64(sim.BigNegReward-7), tr.Reward)
			assert.True(t, tr.Info.Penalized)
			assert.Equal(t, tt.wantDone, tr.Done)
			assert.Equal(t, before, e.Levels())
			assert.Equal(t, 7, e.Waste())
			assert.Equal(t, 8, e.TimeRemaining())
		})
	}
}

func TestEngine_IncrementalKeepsAccumulatingPenalties(t *testing.T) {
	cfg := sim.EnvConfig{BagCapacity: 9, ItemSizes: []int{3}, TimeHorizon: 3, OverflowPolicy: sim.OverflowIncremental}
	e := newScripted(t, cfg, 3)
	e.Reset()

	rewards := make([]float64, 0, 3)
	for i := 0; i < 3; i++ {
		tr, err := e.Step(7)
		require.NoError(t, err)
		rewards = append(rewards, tr.Reward)
		assert.Equal(t, i == 2, tr.Done)
	}
	assert.Equal(t, []float64{-100, -100, -100}, rewards)
}

func TestEngine_InvalidActionIsFatal(t *testing.T) {
	e := newScripted(t, sim.EnvConfig{TimeHorizon: 5}, 2)
	e.Reset()

	for _, action := range []int{-1, 9, 100} {
		_, err := e.Step(action)
		assert.True(t, errors.Is(err, sim.ErrInvalidAction), "action %d", action)
	}
	assert.Equal(t, 5, e.TimeRemaining(), "state untouched")
}

func TestEngine_StepAfterDone(t *testing.T) {
	e := newScripted(t, sim.EnvConfig{TimeHorizon: 1}, 2)
	_, err := e.Step(0)
	assert.ErrorIs(t, err, sim.ErrEpisodeOver, "before first Reset")
	assert.Nil(t, e.LegalActions(), "before first Reset")

	e.Reset()
	tr, err := e.Step(0)
	require.NoError(t, err)
	require.True(t, tr.Done)
	_, err = e.Step(0)
	assert.ErrorIs(t, err, sim.ErrEpisodeOver)

	e.Reset()
	_, err = e.Step(0)
	assert.NoError(t, err)
	assert.Equal(t, 2, e.EpisodeCount())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  sim.EnvConfig
	}{
		{"item as large as capacity", sim.EnvConfig{BagCapacity: 5, ItemSizes: []int{5}}},
		{"mismatched probabilities", sim.EnvConfig{ItemSizes: []int{1, 2}, ItemProbabilities: []float64{1}}},
		{"no probability mass", sim.EnvConfig{ItemSizes: []int{1}, ItemProbabilities: []float64{0}}},
		{"unknown overflow policy", sim.EnvConfig{OverflowPolicy: "lenient"}},
		{"unknown repair", sim.EnvConfig{ActionRepair: "furthest"}},
		{"capacity one", sim.EnvConfig{BagCapacity: 1, ItemSizes: []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, sim.NewPartitionedRNG(1))
			assert.ErrorIs(t, err, sim.ErrInvalidConfig)
		})
	}
}

func TestEngine_Defaults(t *testing.T) {
	e, err := New(sim.EnvConfig{}, sim.NewPartitionedRNG(3))
	require.NoError(t, err)
	assert.Equal(t, 9, e.ActionCount())
	obs := e.Reset()
	assert.Len(t, obs, 10)
	assert.Contains(t, []int{2, 3}, e.ItemSize())
	assert.Equal(t, 1000, e.TimeRemaining())
}

// randomEpisode drives e with pseudo-random in-range actions and checks the
// structural invariants after every step.
func randomEpisode(t *testing.T, e *Engine, seed int64) []sim.Transition[Info] {
	t.Helper()
	rng := sim.NewPartitionedRNG(sim.Seed(seed)).ForSubsystem(sim.SubsystemPolicy)
	e.Reset()
	out := make([]sim.Transition[Info], 0)
	for {
		tr, err := e.Step(rng.Intn(e.ActionCount()))
		require.NoError(t, err)
		out = append(out, tr)

		levels := e.Levels()
		used := 0
		for l, n := range levels {
			require.GreaterOrEqual(t, n, 0, "level %d", l)
			used += l * n
			// distribution map agrees with levels
			require.Equal(t, n, e.BinTypes().Count(l), "level %d", l)
		}
		// no capacity created or destroyed
		require.LessOrEqual(t, used+e.Capacity()*e.NumFullBins(), e.Capacity()*e.BinsOpened())

		if tr.Done {
			return out
		}
	}
}

func TestEngine_Invariants(t *testing.T) {
	for _, policy := range []string{sim.OverflowStrict, sim.OverflowIncremental} {
		for _, repair := range []string{sim.RepairExact, sim.RepairNearest} {
			t.Run(policy+"/"+repair, func(t *testing.T) {
				cfg := sim.EnvConfig{
					BagCapacity: 10, ItemSizes: []int{1, 2, 3, 5}, ItemProbabilities: []float64{0.3, 0.3, 0.2, 0.2},
					TimeHorizon: 200, OverflowPolicy: policy, ActionRepair: repair,
				}
				for seed := int64(0); seed < 5; seed++ {
					e, err := New(cfg, sim.NewPartitionedRNG(sim.Seed(seed)))
					require.NoError(t, err)
					randomEpisode(t, e, seed)
				}
			})
		}
	}
}

func TestEngine_Determinism(t *testing.T) {
	cfg := sim.EnvConfig{BagCapacity: 12, ItemSizes: []int{2, 3, 4}, ItemProbabilities: []float64{0.5, 0.3, 0.2},
		TimeHorizon: 100, OverflowPolicy: sim.OverflowIncremental}

	run := func() []sim.Transition[Info] {
		e, err := New(cfg, sim.NewPartitionedRNG(42))
		require.NoError(t, err)
		return randomEpisode(t, e, 7)
	}
	assert.Equal(t, run(), run())
}

func TestEngine_NearestNeverPenalizes(t *testing.T) {
	cfg := sim.EnvConfig{BagCapacity: 10, ItemSizes: []int{2, 3, 4}, TimeHorizon: 300, ActionRepair: sim.RepairNearest}
	e, err := New(cfg, sim.NewPartitionedRNG(5))
	require.NoError(t, err)
	for _, tr := range randomEpisode(t, e, 5) {
		assert.False(t, tr.Info.Penalized)
		assert.Less(t, tr.Reward, 10.0)
	}
}
