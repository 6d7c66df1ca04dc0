package sim

import (
	"hash/fnv"
	"math/rand"
)

// Seed identifies a reproducible run. Two engines built from the same Seed,
// identical configuration and the same action sequence produce identical
// observations, rewards and terminal flags.
type Seed int64

// RNG subsystems. Each engine draws from its own named stream so that, for
// example, bin-composition bookkeeping never perturbs the item sequence.
const (
	// SubsystemItems drives bin-packing item sizes. Uses the seed directly.
	SubsystemItems = "items"
	// SubsystemBinTypes picks which composition migrates on an insert.
	SubsystemBinTypes = "bintypes"
	// SubsystemArrivals drives online vertex arrivals.
	SubsystemArrivals = "arrivals"
	// SubsystemOracle drives oracle realizations.
	SubsystemOracle = "oracle"
	// SubsystemPolicy drives baseline policies in the CLI.
	SubsystemPolicy = "policy"
)

// PartitionedRNG provides deterministic, isolated random streams per subsystem.
//
// Derivation:
//   - SubsystemItems: the seed itself
//   - everything else: seed XOR fnv1a64(name)
//
// Not safe for concurrent use.
type PartitionedRNG struct {
	seed       Seed
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a seed.
func NewPartitionedRNG(seed Seed) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for the named subsystem. The same name always
// returns the same *rand.Rand. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derived := int64(p.seed)
	if name != SubsystemItems {
		derived ^= fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the seed this PartitionedRNG was created from.
func (p *PartitionedRNG) Seed() Seed {
	return p.seed
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
