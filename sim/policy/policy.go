// Package policy provides baseline action-selection rules for driving the
// engines from the CLI and from tests.
package policy

import (
	"fmt"
	"math/rand"
	"sort"
)

// Policy picks an action given the legal actions of the current state
// (ascending, never empty) and the size of the action space.
type Policy interface {
	Choose(legal []int, actionCount int) int
}

// Random picks uniformly among the legal actions.
type Random struct {
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random { return &Random{rng: rng} }

func (r *Random) Choose(legal []int, _ int) int {
	return legal[r.rng.Intn(len(legal))]
}

// Uniform picks uniformly from the whole action space, legal or not.
type Uniform struct {
	rng *rand.Rand
}

func NewUniform(rng *rand.Rand) *Uniform { return &Uniform{rng: rng} }

func (u *Uniform) Choose(_ []int, actionCount int) int {
	return u.rng.Intn(actionCount)
}

// Greedy picks an extreme legal action. For bin packing, Highest is best
// fit: the fullest bin that still takes the item. For matching, lowest is
// the first unmatched neighbor; skip sorts last so it is taken only when
// nothing else is legal.
type Greedy struct {
	Highest bool
}

func (g Greedy) Choose(legal []int, _ int) int {
	if g.Highest {
		return legal[len(legal)-1]
	}
	return legal[0]
}

var validPolicies = map[string]bool{
	"random":  true,
	"uniform": true,
	"greedy":  true,
}

// IsValidPolicy returns true if name is a recognized policy.
func IsValidPolicy(name string) bool { return validPolicies[name] }

// ValidPolicyNames returns the recognized policy names, sorted.
func ValidPolicyNames() []string {
	names := make([]string, 0, len(validPolicies))
	for n := range validPolicies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewPolicy creates a policy by name. bestFitHighest selects the Greedy
// direction (true for bin packing).
// Panics on unknown names; check with IsValidPolicy first.
func NewPolicy(name string, rng *rand.Rand, bestFitHighest bool) Policy {
	switch name {
	case "random":
		return NewRandom(rng)
	case "uniform":
		return NewUniform(rng)
	case "greedy":
		return Greedy{Highest: bestFitHighest}
	default:
		panic(fmt.Sprintf("unknown policy %q; valid policies: %v", name, ValidPolicyNames()))
	}
}
