package trace

// TraceSummary aggregates statistics from an EpisodeTrace.
type TraceSummary struct {
	Steps              int
	TotalReward        float64
	MeanReward         float64
	Penalties          int
	Matches            int
	Terminated         bool        // the last recorded step was terminal
	ActionDistribution map[int]int // applied action → count
}

// Summarize computes aggregate statistics from an EpisodeTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(et *EpisodeTrace) *TraceSummary {
	summary := &TraceSummary{
		ActionDistribution: make(map[int]int),
	}
	if et == nil || len(et.Steps) == 0 {
		return summary
	}

	summary.Steps = len(et.Steps)
	for _, s := range et.Steps {
		summary.TotalReward += s.Reward
		summary.ActionDistribution[s.Applied]++
		if s.Penalized {
			summary.Penalties++
		}
		if s.Matched {
			summary.Matches++
		}
	}
	summary.MeanReward = summary.TotalReward / float64(summary.Steps)
	summary.Terminated = et.Steps[len(et.Steps)-1].Done
	return summary
}
