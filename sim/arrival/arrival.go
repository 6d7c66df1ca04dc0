// Package arrival produces the sequence of online arrivals of an episode:
// online vertex identities for matching and item sizes for bin packing.
package arrival

import (
	"fmt"
	"math/rand"
	"sort"
)

// Process yields the online vertex arriving at each step of an episode.
type Process interface {
	// Reset prepares a new episode.
	Reset(rng *rand.Rand)
	// Next returns the arrival at elapsed step t (0 for the first arrival).
	Next(rng *rand.Rand, t int) int
}

// ItemSampler yields bin-packing item sizes.
type ItemSampler interface {
	Sample(rng *rand.Rand) int
}

// Categorical draws i.i.d. values from a fixed discrete distribution by
// inverse CDF. Weights are normalized; zero-weight values are never drawn.
type Categorical struct {
	values []int
	cdf    []float64
}

// NewCategorical builds a categorical distribution over values.
func NewCategorical(values []int, weights []float64) (*Categorical, error) {
	if len(values) != len(weights) {
		return nil, fmt.Errorf("categorical: %d values but %d weights", len(values), len(weights))
	}
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("categorical: negative weight %f at %d", w, i)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("categorical: weights have no positive mass")
	}

	c := &Categorical{
		values: make([]int, 0, len(values)),
		cdf:    make([]float64, 0, len(values)),
	}
	cumulative := 0.0
	for i, w := range weights {
		if w == 0 {
			continue
		}
		cumulative += w / total
		c.values = append(c.values, values[i])
		c.cdf = append(c.cdf, cumulative)
	}
	c.cdf[len(c.cdf)-1] = 1.0
	return c, nil
}

// NewUniform builds a categorical distribution over 0..n-1 with the given
// rates, or uniform rates when rates is empty.
func NewUniform(n int, rates []float64) (*Categorical, error) {
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	if len(rates) == 0 {
		rates = make([]float64, n)
		for i := range rates {
			rates[i] = 1
		}
	}
	return NewCategorical(values, rates)
}

// Sample draws one value.
func (c *Categorical) Sample(rng *rand.Rand) int {
	if len(c.values) == 1 {
		return c.values[0]
	}
	u := rng.Float64()
	idx := sort.SearchFloat64s(c.cdf, u)
	if idx >= len(c.values) {
		idx = len(c.values) - 1
	}
	return c.values[idx]
}

// Probability returns the normalized probability of value v.
func (c *Categorical) Probability(v int) float64 {
	prev := 0.0
	for i, x := range c.values {
		if x == v {
			return c.cdf[i] - prev
		}
		prev = c.cdf[i]
	}
	return 0
}

// Reset is a no-op; categorical arrivals are memoryless.
func (c *Categorical) Reset(_ *rand.Rand) {}

// Next draws an i.i.d. arrival; repeats are allowed.
func (c *Categorical) Next(rng *rand.Rand, _ int) int {
	return c.Sample(rng)
}

// Permutation visits every online vertex exactly once per episode in a
// uniformly random order, reshuffled on every Reset.
type Permutation struct {
	order []int
}

// NewPermutation creates a permutation process over 0..n-1.
func NewPermutation(n int) *Permutation {
	p := &Permutation{order: make([]int, n)}
	for i := range p.order {
		p.order[i] = i
	}
	return p
}

// Reset reshuffles the arrival order.
func (p *Permutation) Reset(rng *rand.Rand) {
	rng.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
}

// Next returns the t-th vertex of the current order.
func (p *Permutation) Next(_ *rand.Rand, t int) int {
	return p.order[t]
}

// Order returns a copy of the current arrival order.
func (p *Permutation) Order() []int {
	return append([]int(nil), p.order...)
}

// Sequential is the deterministic schedule of the upper-triangle graph:
// the vertex arriving at step t is t.
type Sequential struct{}

func (Sequential) Reset(_ *rand.Rand)           {}
func (Sequential) Next(_ *rand.Rand, t int) int { return t }

// Scripted replays a fixed sequence, cycling when exhausted. Useful for tests
// and for replaying recorded episodes.
type Scripted struct {
	seq  []int
	next int
}

// NewScripted creates a scripted process or sampler. seq must be non-empty.
func NewScripted(seq ...int) *Scripted {
	return &Scripted{seq: append([]int(nil), seq...)}
}

// Reset rewinds to the start of the sequence.
func (s *Scripted) Reset(_ *rand.Rand) { s.next = 0 }

// Next returns the t-th scripted arrival.
func (s *Scripted) Next(_ *rand.Rand, t int) int {
	return s.seq[t%len(s.seq)]
}

// Sample returns scripted values in order, cycling when exhausted.
func (s *Scripted) Sample(_ *rand.Rand) int {
	v := s.seq[s.next%len(s.seq)]
	s.next++
	return v
}

// Realize draws n i.i.d. uniform online identities from 0..online-1, forming
// one synthetic episode for offline analysis.
func Realize(rng *rand.Rand, online, n int) []int {
	seq := make([]int, n)
	for i := range seq {
		seq[i] = rng.Intn(online)
	}
	return seq
}
