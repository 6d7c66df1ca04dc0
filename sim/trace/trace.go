package trace

import "github.com/google/uuid"

// TraceLevel controls the verbosity of episode tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures every step of every episode.
	TraceLevelSteps TraceLevel = "steps"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// EpisodeTrace collects the step records of a single episode.
type EpisodeTrace struct {
	ID    string
	Env   string // "binpack" or "matching"
	Seed  int64
	Steps []StepRecord
}

// NewEpisodeTrace creates an EpisodeTrace with a fresh random ID.
func NewEpisodeTrace(env string, seed int64) *EpisodeTrace {
	return &EpisodeTrace{
		ID:    uuid.NewString(),
		Env:   env,
		Seed:  seed,
		Steps: make([]StepRecord, 0),
	}
}

// Record appends a step record, numbering it by position.
func (et *EpisodeTrace) Record(r StepRecord) {
	r.Step = len(et.Steps)
	et.Steps = append(et.Steps, r)
}
