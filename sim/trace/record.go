// Package trace records per-step decisions of an episode for offline analysis.
// This package has no dependencies on the engines; it stores pure data types.
package trace

// StepRecord captures one Step of an engine.
type StepRecord struct {
	Step      int
	Action    int // as submitted by the caller
	Applied   int // after repair; equal to Action when no repair applies
	Reward    float64
	Penalized bool // bin packing: overflow or empty level
	Matched   bool // matching: the step produced a match
	Done      bool
	Legal     int // number of legal actions before the step
}
