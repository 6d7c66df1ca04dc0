// Package mask decorates an engine with a dense legality mask over its
// discrete action space.
package mask

import "github.com/allocsim/allocsim/sim"

// Masked is an observation paired with the legality mask of the state it
// describes.
type Masked struct {
	Mask        []float64
	Observation sim.Observation
}

// MaskedTransition is a Step result with the mask of the next state.
// Mask is nil only when the engine returns no observation.
type MaskedTransition[I any] struct {
	Masked
	Reward float64
	Done   bool
	Info   I
}

// Env wraps an engine and recomputes the mask after every Reset and Step.
type Env[I any] struct {
	inner sim.Env[I]
}

// Wrap returns a masking decorator around inner.
func Wrap[I any](inner sim.Env[I]) *Env[I] {
	return &Env[I]{inner: inner}
}

// Inner returns the wrapped engine.
func (e *Env[I]) Inner() sim.Env[I] { return e.inner }

// ActionCount is the action count of the wrapped engine.
func (e *Env[I]) ActionCount() int { return e.inner.ActionCount() }

// Reset resets the wrapped engine.
func (e *Env[I]) Reset() Masked {
	obs := e.inner.Reset()
	return Masked{Mask: e.Current(), Observation: obs}
}

// Step forwards action and attaches the mask of the resulting state.
func (e *Env[I]) Step(action int) (MaskedTransition[I], error) {
	tr, err := e.inner.Step(action)
	if err != nil {
		return MaskedTransition[I]{}, err
	}
	out := MaskedTransition[I]{
		Masked: Masked{Observation: tr.Observation},
		Reward: tr.Reward,
		Done:   tr.Done,
		Info:   tr.Info,
	}
	if tr.Observation != nil {
		out.Mask = e.Current()
	}
	return out, nil
}

// Current renders the wrapped engine's legal actions as a mask.
func (e *Env[I]) Current() []float64 {
	return Mask(e.inner.ActionCount(), e.inner.LegalActions())
}

// Mask builds a dense 0/1 vector of length n with ones at legal.
// Entries of legal outside [0, n) are ignored.
func Mask(n int, legal []int) []float64 {
	m := make([]float64, n)
	for _, a := range legal {
		if a >= 0 && a < n {
			m[a] = 1
		}
	}
	return m
}

// Legal lists the indices set in m.
func Legal(m []float64) []int {
	out := make([]int, 0, len(m))
	for i, v := range m {
		if v != 0 {
			out = append(out, i)
		}
	}
	return out
}
