// Package sim provides the shared core of the online allocation engines.
//
// # Reading Guide
//
// Start with these files to understand the decision-process contract:
//   - env.go: Env, Transition, Observation and the sentinel errors
//   - config.go: EnvConfig, its YAML loading, defaults and validation
//   - rng.go: PartitionedRNG, one deterministic stream per subsystem
//
// # Architecture
//
// The sim package defines the contract; engines and their decorators live in
// sub-packages:
//   - sim/binpack/: online bin packing, action repair, continuous actions
//   - sim/matching/: online bipartite matching over a sim/graph.Graph
//   - sim/arrival/: arrival processes and item-size samplers
//   - sim/mask/: legality masks over any Env
//   - sim/oracle/: optimal-matching probability tables and their cache
//   - sim/solver/: maximum bipartite matching
//   - sim/trace/, sim/metrics/: episode records and Prometheus export
//   - sim/policy/: baseline action-selection rules
//
// # Determinism
//
// Every engine draws randomness only from the PartitionedRNG it is given.
// Items, bin-type migration, arrivals, oracle realizations and policies each
// use their own stream, so adding draws to one never shifts another.
package sim
