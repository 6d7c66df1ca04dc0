// Package binpack implements online bin packing as a step-wise decision
// process. The state is the number of open bins at every fill level plus the
// size of the item waiting to be placed; an action names the fill level of the
// bin that receives the item, with level 0 meaning "open a new bin".
package binpack

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/arrival"
)

// Info carries per-step diagnostics.
type Info struct {
	// Requested is the action submitted by the caller.
	Requested int
	// Applied is the action after repair.
	Applied int
	// Penalized is set when the applied action overflowed or targeted an
	// empty level.
	Penalized bool
	// BinTypes is a snapshot of open-bin compositions per fill level.
	BinTypes map[int]map[string]int
	// FullBinTypes is a snapshot of the compositions of full bins.
	FullBinTypes map[string]int
}

// Engine is the canonical bin-packing core. Overflow handling and action
// repair are configured, not subclassed.
type Engine struct {
	capacity    int
	horizon     int
	incremental bool
	resolver    Resolver
	items       arrival.ItemSampler
	itemRNG     *rand.Rand
	typeRNG     *rand.Rand

	levels        []int
	binTypes      *BinTypes
	itemSize      int
	waste         int
	timeRemaining int
	done          bool

	numFullBins  int
	binsOpened   int
	totalReward  float64
	stepCount    int
	episodeCount int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithItemSampler replaces the configured item-size distribution.
func WithItemSampler(s arrival.ItemSampler) Option {
	return func(e *Engine) { e.items = s }
}

// WithResolver replaces the configured action repair strategy.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// New builds an engine from cfg (unspecified options take bin-packing
// defaults). Randomness comes from rng's items and bintypes streams.
func New(cfg sim.EnvConfig, rng *sim.PartitionedRNG, opts ...Option) (*Engine, error) {
	cfg = cfg.WithBinPackingDefaults()
	if err := cfg.ValidateBinPacking(); err != nil {
		return nil, err
	}
	resolver, ok := NewResolver(cfg.ActionRepair)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action_repair %q", sim.ErrInvalidConfig, cfg.ActionRepair)
	}
	items, err := arrival.NewCategorical(cfg.ItemSizes, cfg.ItemProbabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrInvalidConfig, err)
	}

	e := &Engine{
		capacity:    cfg.BagCapacity,
		horizon:     cfg.TimeHorizon,
		incremental: cfg.OverflowPolicy == sim.OverflowIncremental,
		resolver:    resolver,
		items:       items,
		itemRNG:     rng.ForSubsystem(sim.SubsystemItems),
		typeRNG:     rng.ForSubsystem(sim.SubsystemBinTypes),
		done:        true,
	}
	for _, opt := range opts {
		opt(e)
	}
	logrus.Debugf("bin packing: capacity=%d sizes=%v probabilities=%v horizon=%d overflow=%s repair=%s",
		cfg.BagCapacity, cfg.ItemSizes, cfg.ItemProbabilities, cfg.TimeHorizon, cfg.OverflowPolicy, cfg.ActionRepair)
	return e, nil
}

// Reset empties every bin, draws the first item and rewinds the clock.
func (e *Engine) Reset() sim.Observation {
	if r, ok := e.items.(interface{ Reset(*rand.Rand) }); ok {
		r.Reset(e.itemRNG)
	}
	e.levels = make([]int, e.capacity)
	e.binTypes = NewBinTypes()
	e.waste = 0
	e.numFullBins = 0
	e.binsOpened = 0
	e.totalReward = 0
	e.stepCount = 0
	e.timeRemaining = e.horizon
	e.done = false
	e.itemSize = e.items.Sample(e.itemRNG)
	e.episodeCount++
	return e.observation()
}

// Step places the pending item at the bin level named by action.
//
// Out-of-range actions return ErrInvalidAction without touching state.
// Overflowing a bin or targeting an empty level costs BigNegReward minus the
// last waste and, under the strict policy, ends the episode.
func (e *Engine) Step(action int) (sim.Transition[Info], error) {
	if action < 0 || action >= e.capacity {
		return sim.Transition[Info]{}, fmt.Errorf("%w: bin level %d not in [0, %d)", sim.ErrInvalidAction, action, e.capacity)
	}
	if e.done {
		return sim.Transition[Info]{}, sim.ErrEpisodeOver
	}

	applied := e.resolver.Resolve(e.State(), action)
	var reward int
	penalized := false
	done := false

	switch {
	case applied > e.capacity-e.itemSize:
		logrus.Debugf("bin packing: item %d overflows a bin at level %d", e.itemSize, applied)
		reward, penalized = sim.BigNegReward-e.waste, true
	case applied == 0:
		e.levels[e.itemSize]++
		e.binsOpened++
		e.binTypes.Open(e.itemSize)
		e.waste = e.capacity - e.itemSize
		reward = -e.waste
	case e.levels[applied] == 0:
		logrus.Debugf("bin packing: no bin at level %d", applied)
		reward, penalized = sim.BigNegReward-e.waste, true
	default:
		if err := e.binTypes.Migrate(e.typeRNG, applied, e.itemSize, e.capacity); err != nil {
			return sim.Transition[Info]{}, err
		}
		if applied+e.itemSize == e.capacity {
			e.numFullBins++
		} else {
			e.levels[applied+e.itemSize]++
		}
		e.levels[applied]--
		e.waste = -e.itemSize
		reward = -e.waste
	}
	if penalized && !e.incremental {
		done = true
	}

	e.totalReward += float64(reward)
	e.stepCount++
	e.timeRemaining--
	if e.timeRemaining == 0 {
		done = true
	}
	e.done = done
	e.itemSize = e.items.Sample(e.itemRNG)

	return sim.Transition[Info]{
		Observation: e.observation(),
		Reward:      float64(reward),
		Done:        done,
		Info: Info{
			Requested:    action,
			Applied:      applied,
			Penalized:    penalized,
			BinTypes:     e.binTypes.Snapshot(),
			FullBinTypes: e.binTypes.FullSnapshot(),
		},
	}, nil
}

// ActionCount is the bag capacity: one action per fill level.
func (e *Engine) ActionCount() int { return e.capacity }

// LegalActions lists the placements accepted without penalty. It is nil
// before the first Reset.
func (e *Engine) LegalActions() []int {
	if e.levels == nil {
		return nil
	}
	return e.State().LegalActions()
}

// State returns a read-only view of the current packing state.
func (e *Engine) State() State {
	return State{Capacity: e.capacity, ItemSize: e.itemSize, Levels: e.levels}
}

// Levels returns a copy of the open-bin count per fill level.
func (e *Engine) Levels() []int { return append([]int(nil), e.levels...) }

// ItemSize is the size of the item awaiting placement.
func (e *Engine) ItemSize() int { return e.itemSize }

// Waste is the waste delta of the last successful placement.
func (e *Engine) Waste() int { return e.waste }

// TimeRemaining counts down from the horizon to 0.
func (e *Engine) TimeRemaining() int { return e.timeRemaining }

// Capacity is the bag capacity.
func (e *Engine) Capacity() int { return e.capacity }

// NumFullBins is the number of bins filled exactly to capacity this episode.
func (e *Engine) NumFullBins() int { return e.numFullBins }

// BinsOpened is the number of bins opened this episode.
func (e *Engine) BinsOpened() int { return e.binsOpened }

// TotalReward is the reward accumulated this episode.
func (e *Engine) TotalReward() float64 { return e.totalReward }

// StepCount is the number of steps taken this episode.
func (e *Engine) StepCount() int { return e.stepCount }

// EpisodeCount is the number of Resets so far.
func (e *Engine) EpisodeCount() int { return e.episodeCount }

// BinTypes exposes the composition bookkeeping.
func (e *Engine) BinTypes() *BinTypes { return e.binTypes }

// observation is levels ++ [item_size].
func (e *Engine) observation() sim.Observation {
	obs := make(sim.Observation, 0, e.capacity+1)
	for _, n := range e.levels {
		obs = append(obs, float64(n))
	}
	return append(obs, float64(e.itemSize))
}
