package binpack

// State is a read-only view of the packing state used by resolvers and masks.
type State struct {
	Capacity int
	ItemSize int
	Levels   []int // open bins per fill level, indexed 0..Capacity-1
}

// Accepts reports whether action places the pending item without penalty:
// action 0 opens a new bin; any other level must hold at least one bin with
// room for the item.
func (s State) Accepts(action int) bool {
	if action < 0 || action >= s.Capacity {
		return false
	}
	if action > s.Capacity-s.ItemSize {
		return false
	}
	if action == 0 {
		return true
	}
	return s.Levels[action] > 0
}

// LegalActions lists the accepted actions in ascending order. Action 0 is
// always legal.
func (s State) LegalActions() []int {
	legal := []int{0}
	for l := 1; l < s.Capacity; l++ {
		if s.Levels[l] > 0 && l <= s.Capacity-s.ItemSize {
			legal = append(legal, l)
		}
	}
	return legal
}

// Resolver transforms a proposed in-range action before the engine applies it.
type Resolver interface {
	Resolve(s State, action int) int
}

// Exact applies actions as proposed; invalid placements are penalized.
type Exact struct{}

func (Exact) Resolve(_ State, action int) int { return action }

// Nearest replaces an invalid placement with the legal existing-bin level
// closest to it, preferring the smaller level on ties, or opens a new bin
// when no existing bin fits.
type Nearest struct{}

func (Nearest) Resolve(s State, action int) int {
	if s.Accepts(action) {
		return action
	}
	best, bestDist := 0, -1
	for l := 1; l < s.Capacity; l++ {
		if s.Levels[l] == 0 || l > s.Capacity-s.ItemSize {
			continue
		}
		d := l - action
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = l, d
		}
	}
	return best
}

// NewResolver returns the resolver registered under name ("exact" or "nearest").
func NewResolver(name string) (Resolver, bool) {
	switch name {
	case "", "exact":
		return Exact{}, true
	case "nearest":
		return Nearest{}, true
	default:
		return nil, false
	}
}
