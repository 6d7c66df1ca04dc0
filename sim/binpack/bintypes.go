package binpack

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// BinTypes is a multiset of multisets: for every fill level, how many open
// bins hold each composition of item sizes. A composition is keyed by its item
// sizes sorted ascending and joined by single spaces ("2 2 3").
//
// Bins that become full leave the per-level map and are counted in a
// separate multiset of full compositions.
//
// Invariant: Count(l) equals the engine's bin count at level l.
type BinTypes struct {
	open map[int]map[string]int
	full map[string]int
}

// NewBinTypes returns an empty distribution.
func NewBinTypes() *BinTypes {
	return &BinTypes{
		open: make(map[int]map[string]int),
		full: make(map[string]int),
	}
}

// Open records a new bin holding a single item of the given size.
func (b *BinTypes) Open(size int) {
	add(b.open, size, strconv.Itoa(size))
}

// Migrate moves one bin from level `from` to level from+item, appending item
// to its composition. The bin is chosen uniformly among the bins at that level.
// When from+item reaches capacity the bin is recorded as full instead.
// Nothing is modified when an error is returned.
func (b *BinTypes) Migrate(rng *rand.Rand, from, item, capacity int) error {
	if from <= 0 || from+item > capacity {
		return fmt.Errorf("bin types: invalid migration of item %d from level %d (capacity %d)", item, from, capacity)
	}
	key, err := b.pick(rng, from)
	if err != nil {
		return err
	}
	newKey := appendToKey(key, item)

	remove(b.open, from, key)
	if from+item == capacity {
		b.full[newKey]++
		return nil
	}
	add(b.open, from+item, newKey)
	return nil
}

// Count returns the number of open bins recorded at level.
func (b *BinTypes) Count(level int) int {
	total := 0
	for _, n := range b.open[level] {
		total += n
	}
	return total
}

// Snapshot returns a deep copy of the open-bin distribution.
func (b *BinTypes) Snapshot() map[int]map[string]int {
	out := make(map[int]map[string]int, len(b.open))
	for level, keys := range b.open {
		inner := make(map[string]int, len(keys))
		for k, n := range keys {
			inner[k] = n
		}
		out[level] = inner
	}
	return out
}

// FullSnapshot returns a copy of the full-bin composition counts.
func (b *BinTypes) FullSnapshot() map[string]int {
	out := make(map[string]int, len(b.full))
	for k, n := range b.full {
		out[k] = n
	}
	return out
}

// pick chooses one bin instance at level, weighting each composition by its
// count. Keys are visited in sorted order so the choice depends only on rng.
func (b *BinTypes) pick(rng *rand.Rand, level int) (string, error) {
	keys := b.open[level]
	total := 0
	for _, n := range keys {
		total += n
	}
	if total == 0 {
		return "", fmt.Errorf("bin types: no bin at level %d", level)
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	if len(sorted) == 1 {
		return sorted[0], nil
	}
	r := rng.Intn(total)
	for _, k := range sorted {
		r -= keys[k]
		if r < 0 {
			return k, nil
		}
	}
	return sorted[len(sorted)-1], nil
}

func add(m map[int]map[string]int, level int, key string) {
	inner, ok := m[level]
	if !ok {
		inner = make(map[string]int)
		m[level] = inner
	}
	inner[key]++
}

func remove(m map[int]map[string]int, level int, key string) {
	inner := m[level]
	if inner[key] <= 1 {
		delete(inner, key)
		if len(inner) == 0 {
			delete(m, level)
		}
		return
	}
	inner[key]--
}

// appendToKey inserts item into a composition key, keeping sizes in
// ascending numeric order.
func appendToKey(key string, item int) string {
	parts := strings.Fields(key)
	sizes := make([]int, 0, len(parts)+1)
	for _, p := range parts {
		n, _ := strconv.Atoi(p)
		sizes = append(sizes, n)
	}
	sizes = append(sizes, item)
	sort.Ints(sizes)

	out := make([]string, len(sizes))
	for i, n := range sizes {
		out[i] = strconv.Itoa(n)
	}
	return strings.Join(out, " ")
}
