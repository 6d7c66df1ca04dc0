package matching

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/graph"
)

// BuildGraph resolves the graph described by cfg and returns it with cfg
// defaulted and validated. A graph file sets offline=online=n and, unless a
// horizon was given, time_horizon=n.
func BuildGraph(cfg sim.EnvConfig) (*graph.Graph, sim.EnvConfig, error) {
	var g *graph.Graph
	if cfg.GraphFile != "" {
		loaded, err := graph.Load(cfg.GraphFile)
		if err != nil {
			return nil, cfg, fmt.Errorf("%w: %v", sim.ErrInvalidConfig, err)
		}
		g = loaded
		cfg.Offline, cfg.Online = g.Offline(), g.Online()
		cfg.Edges = nil
		if cfg.TimeHorizon == 0 {
			cfg.TimeHorizon = g.Online()
		}
	}

	cfg = cfg.WithMatchingDefaults()
	if err := cfg.ValidateMatching(); err != nil {
		return nil, cfg, err
	}

	if g == nil {
		switch cfg.Arrival {
		case sim.ArrivalUpperTriangle:
			g = graph.UpperTriangle(cfg.Offline, cfg.Online)
		default:
			edges := make([][2]int, len(cfg.Edges))
			for i, e := range cfg.Edges {
				edges[i] = [2]int{e[0], e[1]}
			}
			built, err := graph.New(cfg.Offline, cfg.Online, edges)
			if err != nil {
				return nil, cfg, fmt.Errorf("%w: %v", sim.ErrInvalidConfig, err)
			}
			g = built
		}
	}
	logrus.Infof("matching graph: %d offline, %d online, %d edges", g.Offline(), g.Online(), g.EdgeCount())
	return g, cfg, nil
}

// NewFromConfig builds the engine variant selected by cfg.Arrival.
func NewFromConfig(cfg sim.EnvConfig, rng *sim.PartitionedRNG) (*Engine, error) {
	g, cfg, err := BuildGraph(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Arrival {
	case sim.ArrivalPermutation:
		return NewPermutation(g, cfg.TimeHorizon, rng)
	case sim.ArrivalUpperTriangle:
		return NewUpperTriangle(g.Offline(), g.Online(), cfg.TimeHorizon, rng)
	default:
		return NewStochastic(g, cfg.ArrivalRate, cfg.TimeHorizon, rng)
	}
}
