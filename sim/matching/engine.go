// Package matching implements online bipartite matching as a step-wise
// decision process. Each step one online vertex arrives; the agent matches it
// to an offline neighbor, irrevocably, or skips it.
package matching

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/arrival"
	"github.com/allocsim/allocsim/sim/graph"
)

// NoMatch is recorded when a step does not produce a match.
const NoMatch = -1

// Info carries per-step diagnostics.
type Info struct {
	// Arrival is the online vertex served by this step.
	Arrival int
	// Matched is the offline vertex matched this step, or NoMatch.
	Matched int
}

// Engine tracks which offline vertices are matched while online vertices
// arrive according to an injected arrival process.
type Engine struct {
	g       *graph.Graph
	process arrival.Process
	rng     *rand.Rand
	horizon int

	matched       []bool
	onlineType    int
	timeRemaining int
	done          bool
	rlMatching    []int
	onlineTypes   []int
	numMatched    int
	episodeCount  int
}

// New builds an engine over g. Arrivals come from process using rng's
// arrivals stream.
func New(g *graph.Graph, process arrival.Process, horizon int, rng *sim.PartitionedRNG) (*Engine, error) {
	if g == nil || g.Offline() == 0 || g.Online() == 0 {
		return nil, fmt.Errorf("%w: matching needs a graph with offline and online vertices", sim.ErrInvalidConfig)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: time_horizon must be positive, got %d", sim.ErrInvalidConfig, horizon)
	}
	switch process.(type) {
	case *arrival.Permutation, arrival.Sequential, *arrival.Sequential:
		if horizon > g.Online() {
			return nil, fmt.Errorf("%w: horizon %d exceeds %d online vertices", sim.ErrInvalidConfig, horizon, g.Online())
		}
	}
	return &Engine{
		g:       g,
		process: process,
		rng:     rng.ForSubsystem(sim.SubsystemArrivals),
		horizon: horizon,
		done:    true,
	}, nil
}

// NewPermutation builds an engine in which every online vertex arrives once,
// in an order reshuffled on every Reset.
func NewPermutation(g *graph.Graph, horizon int, rng *sim.PartitionedRNG) (*Engine, error) {
	return New(g, arrival.NewPermutation(g.Online()), horizon, rng)
}

// NewStochastic builds an engine with i.i.d. arrivals drawn from rates
// (uniform when rates is empty).
func NewStochastic(g *graph.Graph, rates []float64, horizon int, rng *sim.PartitionedRNG) (*Engine, error) {
	if len(rates) > 0 && len(rates) != g.Online() {
		return nil, fmt.Errorf("%w: %d arrival rates for %d online vertices", sim.ErrInvalidConfig, len(rates), g.Online())
	}
	dist, err := arrival.NewUniform(g.Online(), rates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrInvalidConfig, err)
	}
	return New(g, dist, horizon, rng)
}

// NewUpperTriangle builds the deterministic upper-triangle instance: online
// vertex i is adjacent to offline vertices i..offline-1 and arrives at step i.
func NewUpperTriangle(offline, online, horizon int, rng *sim.PartitionedRNG) (*Engine, error) {
	return New(graph.UpperTriangle(offline, online), arrival.Sequential{}, horizon, rng)
}

// Reset clears every match and draws the first arrival.
func (e *Engine) Reset() sim.Observation {
	e.process.Reset(e.rng)
	e.matched = make([]bool, e.g.Offline())
	e.timeRemaining = e.horizon
	e.done = false
	e.rlMatching = make([]int, 0, e.horizon)
	e.numMatched = 0
	e.onlineType = e.process.Next(e.rng, 0)
	e.onlineTypes = append(make([]int, 0, e.horizon), e.onlineType)
	e.episodeCount++
	return e.observation()
}

// Step serves the current arrival. Action offline-count skips it; a
// non-adjacent or already matched target is absorbed with reward 0. Only
// actions outside [0, offline] are errors.
func (e *Engine) Step(action int) (sim.Transition[Info], error) {
	if action < 0 || action > e.g.Offline() {
		return sim.Transition[Info]{}, fmt.Errorf("%w: offline vertex %d not in [0, %d]", sim.ErrInvalidAction, action, e.g.Offline())
	}
	if e.done {
		return sim.Transition[Info]{}, sim.ErrEpisodeOver
	}

	served := e.onlineType
	matched := NoMatch
	reward := 0.0
	switch {
	case action == e.g.Offline():
	case !e.g.Adjacent(served, action):
		logrus.Debugf("matching: offline %d is not a neighbor of online %d", action, served)
	case e.matched[action]:
		logrus.Debugf("matching: offline %d already matched", action)
	default:
		e.matched[action] = true
		e.numMatched++
		matched = action
		reward = 1
	}
	e.rlMatching = append(e.rlMatching, matched)

	e.timeRemaining--
	tr := sim.Transition[Info]{
		Reward: reward,
		Info:   Info{Arrival: served, Matched: matched},
	}
	if e.timeRemaining == 0 {
		e.done = true
		tr.Done = true
		return tr, nil
	}

	e.onlineType = e.process.Next(e.rng, e.horizon-e.timeRemaining)
	e.onlineTypes = append(e.onlineTypes, e.onlineType)
	tr.Observation = e.observation()
	return tr, nil
}

// ActionCount is offline+1: one action per offline vertex plus skip.
func (e *Engine) ActionCount() int { return e.g.Offline() + 1 }

// SkipAction is the action that leaves the current arrival unmatched.
func (e *Engine) SkipAction() int { return e.g.Offline() }

// LegalActions lists the unmatched neighbors of the current arrival and the
// skip action. It is nil before the first Reset.
func (e *Engine) LegalActions() []int {
	if e.matched == nil {
		return nil
	}
	legal := make([]int, 0)
	for _, u := range e.g.OnlineNeighbors(e.onlineType) {
		if !e.matched[u] {
			legal = append(legal, u)
		}
	}
	return append(legal, e.g.Offline())
}

// Graph returns the underlying graph.
func (e *Engine) Graph() *graph.Graph { return e.g }

// OnlineType is the online vertex currently awaiting a decision.
func (e *Engine) OnlineType() int { return e.onlineType }

// Matched returns a copy of the matched flags of the offline vertices.
func (e *Engine) Matched() []bool { return append([]bool(nil), e.matched...) }

// NumMatched is the number of matches made this episode.
func (e *Engine) NumMatched() int { return e.numMatched }

// RLMatching returns, per step, the matched offline vertex or NoMatch.
func (e *Engine) RLMatching() []int { return append([]int(nil), e.rlMatching...) }

// OnlineTypes returns the arrivals of this episode so far.
func (e *Engine) OnlineTypes() []int { return append([]int(nil), e.onlineTypes...) }

// TimeRemaining counts down from the horizon to 0.
func (e *Engine) TimeRemaining() int { return e.timeRemaining }

// Horizon is the episode length.
func (e *Engine) Horizon() int { return e.horizon }

// EpisodeCount is the number of Resets so far.
func (e *Engine) EpisodeCount() int { return e.episodeCount }

// observation is matched ++ adjacency(online_type) ++ [online_type] ++ [elapsed_fraction].
func (e *Engine) observation() sim.Observation {
	n := e.g.Offline()
	obs := make(sim.Observation, 0, 2*n+2)
	for _, m := range e.matched {
		if m {
			obs = append(obs, 1)
		} else {
			obs = append(obs, 0)
		}
	}
	obs = append(obs, e.g.AdjacencyRow(e.onlineType)...)
	obs = append(obs, float64(e.onlineType))
	return append(obs, 1-float64(e.timeRemaining)/float64(e.horizon))
}
