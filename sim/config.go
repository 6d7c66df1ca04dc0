package sim

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Overflow policies for the bin-packing engine.
const (
	// OverflowStrict ends the episode on an overflowing or misplaced item.
	OverflowStrict = "strict"
	// OverflowIncremental penalizes the same violation but keeps the episode running.
	OverflowIncremental = "incremental"
)

// Action repair strategies for the bin-packing engine.
const (
	RepairExact   = "exact"
	RepairNearest = "nearest"
)

// Arrival processes for the matching engine.
const (
	ArrivalPermutation   = "permutation"
	ArrivalStochastic    = "stochastic"
	ArrivalUpperTriangle = "upper_triangle"
)

// EnvConfig holds every recognized engine option. Zero values mean
// "unspecified" and are replaced by the documented defaults of the engine
// that consumes the config. Unrecognized YAML keys are ignored.
type EnvConfig struct {
	// Matching graph
	Offline     int       `yaml:"offline" validate:"gte=0"`
	Online      int       `yaml:"online" validate:"gte=0"`
	Edges       [][]int   `yaml:"edges" validate:"dive,len=2,dive,gte=0"` // (offline, online) pairs, 0-indexed
	GraphFile   string    `yaml:"graph_file"`
	ArrivalRate []float64 `yaml:"arrival_rate" validate:"dive,gte=0"`
	Arrival     string    `yaml:"arrival" validate:"omitempty,oneof=permutation stochastic upper_triangle"`

	// Shared
	TimeHorizon int   `yaml:"time_horizon" validate:"gte=0"`
	Seed        int64 `yaml:"seed"`

	// Bin packing
	BagCapacity       int       `yaml:"bag_capacity" validate:"gte=0"`
	ItemSizes         []int     `yaml:"item_sizes" validate:"dive,gt=0"`
	ItemProbabilities []float64 `yaml:"item_probabilities" validate:"dive,gte=0"`
	OverflowPolicy    string    `yaml:"overflow_policy" validate:"omitempty,oneof=strict incremental"`
	ActionRepair      string    `yaml:"action_repair" validate:"omitempty,oneof=exact nearest"`

	// Oracle
	Samples         int `yaml:"samples" validate:"gte=0"`
	RealizationSize int `yaml:"realization_size" validate:"gte=0"`
	Workers         int `yaml:"workers" validate:"gte=0"`
}

var validate = validator.New()

// recognizedKeys lists the yaml keys EnvConfig understands.
var recognizedKeys = map[string]bool{
	"offline": true, "online": true, "edges": true, "graph_file": true,
	"arrival_rate": true, "arrival": true, "time_horizon": true, "seed": true,
	"bag_capacity": true, "item_sizes": true, "item_probabilities": true,
	"overflow_policy": true, "action_repair": true,
	"samples": true, "realization_size": true, "workers": true,
}

// LoadEnvConfig reads an EnvConfig from a YAML file. Unrecognized keys are
// passed through without effect.
func LoadEnvConfig(path string) (EnvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EnvConfig{}, fmt.Errorf("reading env config: %w", err)
	}
	var cfg EnvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parsing env config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err == nil {
		unknown := make([]string, 0)
		for k := range raw {
			if !recognizedKeys[k] {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			logrus.Debugf("env config %s: ignoring unrecognized options %v", path, unknown)
		}
	}
	return cfg, nil
}

// Validate checks field-level constraints that hold for every engine.
func (c EnvConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i, p := range c.ItemProbabilities {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: item_probabilities[%d] must be finite, got %f", ErrInvalidConfig, i, p)
		}
	}
	for i, r := range c.ArrivalRate {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: arrival_rate[%d] must be finite, got %f", ErrInvalidConfig, i, r)
		}
	}
	return nil
}

// WithBinPackingDefaults fills unspecified bin-packing options:
// bag_capacity=9, item_sizes=[2,3], item_probabilities=[0.8,0.2],
// time_horizon=1000, overflow_policy=strict, action_repair=exact.
func (c EnvConfig) WithBinPackingDefaults() EnvConfig {
	if c.BagCapacity == 0 {
		c.BagCapacity = 9
	}
	if len(c.ItemSizes) == 0 {
		c.ItemSizes = []int{2, 3}
		if len(c.ItemProbabilities) == 0 {
			c.ItemProbabilities = []float64{0.8, 0.2}
		}
	}
	if len(c.ItemProbabilities) == 0 {
		c.ItemProbabilities = make([]float64, len(c.ItemSizes))
		for i := range c.ItemProbabilities {
			c.ItemProbabilities[i] = 1 / float64(len(c.ItemSizes))
		}
	}
	if c.TimeHorizon == 0 {
		c.TimeHorizon = 1000
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = OverflowStrict
	}
	if c.ActionRepair == "" {
		c.ActionRepair = RepairExact
	}
	return c
}

// ValidateBinPacking checks a defaulted bin-packing config.
func (c EnvConfig) ValidateBinPacking() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BagCapacity < 2 {
		return fmt.Errorf("%w: bag_capacity must be at least 2, got %d", ErrInvalidConfig, c.BagCapacity)
	}
	if c.TimeHorizon <= 0 {
		return fmt.Errorf("%w: time_horizon must be positive, got %d", ErrInvalidConfig, c.TimeHorizon)
	}
	if len(c.ItemSizes) != len(c.ItemProbabilities) {
		return fmt.Errorf("%w: %d item_sizes but %d item_probabilities",
			ErrInvalidConfig, len(c.ItemSizes), len(c.ItemProbabilities))
	}
	total := 0.0
	for i, size := range c.ItemSizes {
		if size >= c.BagCapacity {
			return fmt.Errorf("%w: item_sizes[%d]=%d must be smaller than bag_capacity %d",
				ErrInvalidConfig, i, size, c.BagCapacity)
		}
		total += c.ItemProbabilities[i]
	}
	if total <= 0 {
		return fmt.Errorf("%w: item_probabilities must have positive mass", ErrInvalidConfig)
	}
	if math.Abs(total-1) > 1e-6 {
		logrus.Warnf("item_probabilities sum to %.6f; normalizing", total)
	}
	return nil
}

// WithMatchingDefaults fills unspecified matching options:
// offline=100, online=100, time_horizon=100, arrival=stochastic,
// samples=1000, realization_size=online.
func (c EnvConfig) WithMatchingDefaults() EnvConfig {
	if c.Offline == 0 {
		c.Offline = 100
	}
	if c.Online == 0 {
		c.Online = 100
	}
	if c.TimeHorizon == 0 {
		c.TimeHorizon = 100
	}
	if c.Arrival == "" {
		c.Arrival = ArrivalStochastic
	}
	if c.Samples == 0 {
		c.Samples = 1000
	}
	if c.RealizationSize == 0 {
		c.RealizationSize = c.Online
	}
	return c
}

// ValidateMatching checks a defaulted matching config against its graph sizes.
func (c EnvConfig) ValidateMatching() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Offline <= 0 || c.Online <= 0 {
		return fmt.Errorf("%w: offline and online must be positive, got %d and %d", ErrInvalidConfig, c.Offline, c.Online)
	}
	if c.TimeHorizon <= 0 {
		return fmt.Errorf("%w: time_horizon must be positive, got %d", ErrInvalidConfig, c.TimeHorizon)
	}
	if c.Arrival == ArrivalUpperTriangle && c.GraphFile != "" {
		return fmt.Errorf("%w: upper_triangle arrivals generate their own graph and cannot use graph_file %s",
			ErrInvalidConfig, c.GraphFile)
	}
	if (c.Arrival == ArrivalPermutation || c.Arrival == ArrivalUpperTriangle) && c.TimeHorizon > c.Online {
		return fmt.Errorf("%w: %s arrivals need time_horizon <= online (%d > %d)",
			ErrInvalidConfig, c.Arrival, c.TimeHorizon, c.Online)
	}
	if len(c.ArrivalRate) > 0 {
		if len(c.ArrivalRate) != c.Online {
			return fmt.Errorf("%w: arrival_rate has %d entries, want %d", ErrInvalidConfig, len(c.ArrivalRate), c.Online)
		}
		total := 0.0
		for _, r := range c.ArrivalRate {
			total += r
		}
		if total <= 0 {
			return fmt.Errorf("%w: arrival_rate must have positive mass", ErrInvalidConfig)
		}
	}
	for i, e := range c.Edges {
		if e[0] >= c.Offline || e[1] >= c.Online {
			return fmt.Errorf("%w: edges[%d]=%v out of range for %dx%d graph", ErrInvalidConfig, i, e, c.Offline, c.Online)
		}
	}
	return nil
}
