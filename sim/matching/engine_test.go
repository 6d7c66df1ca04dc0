package matching

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/arrival"
	"github.com/allocsim/allocsim/sim/graph"
)

func TestEngine_ConcreteScenario(t *testing.T) {
	// GIVEN K(2,2), horizon 2 and the arrival order [0, 1]
	e, err := New(graph.Complete(2, 2), arrival.NewScripted(0, 1), 2, sim.NewPartitionedRNG(1))
	require.NoError(t, err)

	obs := e.Reset()
	assert.Equal(t, sim.Observation{0, 0, 1, 1, 0, 0}, obs)

	// WHEN online 0 takes offline 0
	tr, err := e.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, tr.Reward)
	assert.False(t, tr.Done)
	assert.Equal(t, sim.Observation{1, 0, 1, 1, 1, 0.5}, tr.Observation)

	// AND online 1 takes offline 1
	tr, err = e.Step(1)
	require.NoError(t, err)

	// THEN both matched and the episode ends with no further observation
	assert.Equal(t, 1.0, tr.Reward)
	assert.True(t, tr.Done)
	assert.Nil(t, tr.Observation)
	assert.Equal(t, []bool{true, true}, e.Matched())
	assert.Equal(t, []int{0, 1}, e.RLMatching())
	assert.Equal(t, 2, e.NumMatched())
}

func TestEngine_AbsorbedActions(t *testing.T) {
	// offline 0 is adjacent to online 0 only; offline 1 to online 1 only
	g, err := graph.New(2, 2, [][2]int{{0, 0}, {1, 1}})
	require.NoError(t, err)
	e, err := New(g, arrival.NewScripted(0, 0, 0, 1), 4, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	e.Reset()

	steps := []struct {
		name        string
		action      int
		wantReward  float64
		wantMatched int
	}{
		{"not a neighbor", 1, 0, NoMatch},
		{"match", 0, 1, 0},
		{"already matched", 0, 0, NoMatch},
		{"skip", 2, 0, NoMatch},
	}
	for i, s := range steps {
		tr, err := e.Step(s.action)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.wantReward, tr.Reward, s.name)
		assert.Equal(t, s.wantMatched, tr.Info.Matched, s.name)
		assert.Equal(t, i == len(steps)-1, tr.Done, s.name)
	}
	assert.Equal(t, []int{NoMatch, 0, NoMatch, NoMatch}, e.RLMatching())
	assert.Equal(t, []int{0, 0, 0, 1}, e.OnlineTypes())
}

func TestEngine_InvalidActionIsFatal(t *testing.T) {
	e, err := New(graph.Complete(3, 3), arrival.NewScripted(0), 3, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	e.Reset()
	for _, a := range []int{-1, 4} {
		_, err := e.Step(a)
		assert.ErrorIs(t, err, sim.ErrInvalidAction)
	}
	assert.Equal(t, 3, e.TimeRemaining())

	// skip is in range
	_, err = e.Step(3)
	assert.NoError(t, err)
}

func TestEngine_StepAfterDone(t *testing.T) {
	e, err := NewUpperTriangle(2, 2, 1, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	_, err = e.Step(0)
	assert.ErrorIs(t, err, sim.ErrEpisodeOver)
	e.Reset()
	_, err = e.Step(0)
	require.NoError(t, err)
	_, err = e.Step(0)
	assert.ErrorIs(t, err, sim.ErrEpisodeOver)
}

func TestEngine_UpperTriangle(t *testing.T) {
	e, err := NewUpperTriangle(3, 3, 3, sim.NewPartitionedRNG(1))
	require.NoError(t, err)

	obs := e.Reset()
	assert.Equal(t, sim.Observation{0, 0, 0, 1, 1, 1, 0, 0}, obs)

	// greedy diagonal matching is perfect
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, e.OnlineType())
		tr, err := e.Step(i)
		require.NoError(t, err)
		assert.Equal(t, 1.0, tr.Reward)
	}
	assert.Equal(t, 3, e.NumMatched())
}

func TestEngine_PermutationNoRepeats(t *testing.T) {
	e, err := NewPermutation(graph.Complete(5, 5), 5, sim.NewPartitionedRNG(9))
	require.NoError(t, err)
	for episode := 0; episode < 3; episode++ {
		e.Reset()
		for !stepSkip(t, e) {
		}
		types := e.OnlineTypes()
		sort.Ints(types)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, types)
	}
	assert.Equal(t, 3, e.EpisodeCount())
}

func TestEngine_PermutationRejectsLongHorizon(t *testing.T) {
	_, err := NewPermutation(graph.Complete(3, 3), 4, sim.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	_, err = NewUpperTriangle(3, 3, 4, sim.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestEngine_StochasticRespectsRates(t *testing.T) {
	e, err := NewStochastic(graph.Complete(3, 3), []float64{0, 3, 1}, 2000, sim.NewPartitionedRNG(4))
	require.NoError(t, err)
	e.Reset()
	for !stepSkip(t, e) {
	}
	counts := map[int]int{}
	for _, v := range e.OnlineTypes() {
		counts[v]++
	}
	assert.Zero(t, counts[0])
	assert.InDelta(t, 0.75, float64(counts[1])/2000, 0.04)

	_, err = NewStochastic(graph.Complete(3, 3), []float64{1, 1}, 10, sim.NewPartitionedRNG(4))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestEngine_MatchedIsMonotone(t *testing.T) {
	g, err := graph.New(4, 4, [][2]int{{0, 0}, {1, 0}, {1, 1}, {2, 2}, {3, 2}, {3, 3}, {0, 3}})
	require.NoError(t, err)
	e, err := NewStochastic(g, nil, 200, sim.NewPartitionedRNG(2))
	require.NoError(t, err)
	policy := sim.NewPartitionedRNG(3).ForSubsystem(sim.SubsystemPolicy)

	e.Reset()
	prev := e.Matched()
	for {
		tr, err := e.Step(policy.Intn(e.ActionCount()))
		require.NoError(t, err)
		cur := e.Matched()
		for i := range prev {
			if prev[i] {
				require.True(t, cur[i], "offline %d unmatched", i)
			}
		}
		prev = cur
		if tr.Done {
			break
		}
	}
}

func TestEngine_Determinism(t *testing.T) {
	run := func() []sim.Transition[Info] {
		e, err := NewStochastic(graph.UpperTriangle(6, 6), []float64{1, 2, 3, 1, 2, 3}, 40, sim.NewPartitionedRNG(77))
		require.NoError(t, err)
		policy := sim.NewPartitionedRNG(5).ForSubsystem(sim.SubsystemPolicy)
		out := []sim.Transition[Info]{{Observation: e.Reset()}}
		for {
			tr, err := e.Step(policy.Intn(e.ActionCount()))
			require.NoError(t, err)
			out = append(out, tr)
			if tr.Done {
				return out
			}
		}
	}
	assert.Equal(t, run(), run())
}

func TestEngine_LegalActions(t *testing.T) {
	e, err := New(graph.UpperTriangle(3, 3), arrival.NewScripted(0, 1, 2), 3, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	assert.Nil(t, e.LegalActions(), "before first Reset")
	e.Reset()
	assert.Equal(t, []int{0, 1, 2, 3}, e.LegalActions())
	_, err = e.Step(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, e.LegalActions())
	assert.Equal(t, 3, e.SkipAction())
}

func TestNewFromConfig_GraphFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "g.mtx")
	require.NoError(t, os.WriteFile(path, []byte("header\n3 3 3\n1 1\n2 2\n3 3\n"), 0o644))

	e, err := NewFromConfig(sim.EnvConfig{GraphFile: path, Arrival: sim.ArrivalPermutation}, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	assert.Equal(t, 4, e.ActionCount())
	assert.Equal(t, 3, e.Horizon())

	_, err = NewFromConfig(sim.EnvConfig{GraphFile: filepath.Join(dir, "missing")}, sim.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)

	// a file graph is never silently replaced by the synthetic upper triangle
	_, err = NewFromConfig(sim.EnvConfig{GraphFile: path, Arrival: sim.ArrivalUpperTriangle}, sim.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestNewFromConfig_Variants(t *testing.T) {
	e, err := NewFromConfig(sim.EnvConfig{Offline: 2, Online: 2, Edges: [][]int{{0, 0}, {1, 1}}, TimeHorizon: 5}, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	assert.Equal(t, 5, e.Horizon())
	assert.True(t, e.Graph().Adjacent(1, 1))

	e, err = NewFromConfig(sim.EnvConfig{Offline: 4, Online: 4, Arrival: sim.ArrivalUpperTriangle}, sim.NewPartitionedRNG(1))
	require.Error(t, err, "default horizon 100 exceeds 4 online vertices")

	e, err = NewFromConfig(sim.EnvConfig{Offline: 4, Online: 4, TimeHorizon: 4, Arrival: sim.ArrivalUpperTriangle}, sim.NewPartitionedRNG(1))
	require.NoError(t, err)
	assert.Equal(t, 10, e.Graph().EdgeCount())

	_, err = NewFromConfig(sim.EnvConfig{Offline: 2, Online: 2, Edges: [][]int{{0, 5}}}, sim.NewPartitionedRNG(1))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

// stepSkip skips the current arrival and reports whether the episode ended.
func stepSkip(t *testing.T, e *Engine) bool {
	t.Helper()
	tr, err := e.Step(e.SkipAction())
	require.NoError(t, err)
	return tr.Done
}
