// Package testutil provides shared test infrastructure for the engine packages.
// It holds the golden trajectory types and assertion helpers used across
// sim/binpack and sim/matching tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/allocsim/allocsim/sim"
)

// GoldenDataset represents the structure of testdata/goldendataset.yaml.
type GoldenDataset struct {
	BinPacking []BinPackingCase `yaml:"binpack"`
	Matching   []MatchingCase   `yaml:"matching"`
}

// Trajectory is the expected outcome of a scripted action sequence.
type Trajectory struct {
	Actions []int     `yaml:"actions"`
	Rewards []float64 `yaml:"rewards"`
	Done    []bool    `yaml:"done"`
}

// BinPackingCase scripts the item sizes of a bin-packing episode.
type BinPackingCase struct {
	Name       string        `yaml:"name"`
	Config     sim.EnvConfig `yaml:"config"`
	Items      []int         `yaml:"items"` // cycled when shorter than the episode
	Trajectory `yaml:",inline"`
}

// MatchingCase scripts the arrivals of a matching episode.
type MatchingCase struct {
	Name       string        `yaml:"name"`
	Config     sim.EnvConfig `yaml:"config"`
	Arrivals   []int         `yaml:"arrivals"`
	Trajectory `yaml:",inline"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// ReplayTrajectory submits want.Actions to step (after the caller's Reset)
// and checks every reward and terminal flag.
func ReplayTrajectory[I any](t *testing.T, name string, step func(int) (sim.Transition[I], error), want Trajectory) {
	t.Helper()
	if len(want.Rewards) != len(want.Actions) || len(want.Done) != len(want.Actions) {
		t.Fatalf("%s: golden case has %d actions, %d rewards, %d done flags", name, len(want.Actions), len(want.Rewards), len(want.Done))
	}
	for i, a := range want.Actions {
		tr, err := step(a)
		if err != nil {
			t.Fatalf("%s: step %d (action %d): %v", name, i, a, err)
		}
		AssertFloat64Equal(t, name, want.Rewards[i], tr.Reward, 1e-12)
		if tr.Done != want.Done[i] {
			t.Errorf("%s: step %d done = %v, want %v", name, i, tr.Done, want.Done[i])
		}
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
