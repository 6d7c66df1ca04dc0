package sim

import "errors"

// Reward constants shared by both problem families.
const (
	// BigNegReward is the fixed penalty for an overflowing or misplaced item.
	BigNegReward = -100
	// BigPosReward is reserved for matching reward scaling.
	BigPosReward = 10
)

var (
	// ErrInvalidAction marks an action outside the declared action space.
	// It is a caller bug: the step is aborted and engine state is unchanged.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidConfig marks a configuration rejected at construction time.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrEpisodeOver is returned by Step before the first Reset or after a
	// terminal transition.
	ErrEpisodeOver = errors.New("episode is over; call Reset")
)

// Observation is the flat numeric view of an engine's state handed to the agent.
type Observation []float64

// Transition is the result of one Step.
// Observation is nil when the engine has nothing further to show
// (matching engines at the terminal step).
type Transition[I any] struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        I
}

// Env is a step-wise decision process over a bounded integer action space.
// Implementations are single-threaded; callers issue one Reset or Step at a time.
type Env[I any] interface {
	// Reset starts a new episode and returns its first observation.
	Reset() Observation
	// Step applies action. An error wrapping ErrInvalidAction is returned for
	// actions outside [0, ActionCount()); rule violations inside the range are
	// reported through the reward and Done flag instead.
	Step(action int) (Transition[I], error)
	// ActionCount is the size of the discrete action space.
	ActionCount() int
	// LegalActions lists the actions the engine would accept without penalty
	// in its current state, in ascending order.
	LegalActions() []int
}
