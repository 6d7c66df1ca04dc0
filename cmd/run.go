package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/allocsim/allocsim/sim/mask"
	"github.com/allocsim/allocsim/sim/metrics"
	"github.com/allocsim/allocsim/sim/policy"
	"github.com/allocsim/allocsim/sim/trace"
)

// maskedEnv is satisfied by mask.Env and oracle.FeatureEnv.
type maskedEnv[I any] interface {
	Reset() mask.Masked
	Step(action int) (mask.MaskedTransition[I], error)
	ActionCount() int
}

type runOptions struct {
	Env        string
	Seed       int64
	Episodes   int
	PolicyName string
	Policy     policy.Policy
	Recorder   *metrics.Recorder
	KeepSteps  bool
}

// EpisodeResult is one entry of the JSON results.
type EpisodeResult struct {
	ID      string              `json:"id"`
	Summary *trace.TraceSummary `json:"summary"`
	Steps   []trace.StepRecord  `json:"steps,omitempty"`
}

// RunResults is the JSON document printed after a run.
type RunResults struct {
	Env      string          `json:"env"`
	Seed     int64           `json:"seed"`
	Policy   string          `json:"policy"`
	Episodes []EpisodeResult `json:"episodes"`
	// MeanReward averages TotalReward over episodes.
	MeanReward float64 `json:"mean_reward"`
}

// describe fills the env-specific fields of a step record.
type describe[I any] func(action int, tr mask.MaskedTransition[I]) trace.StepRecord

// runEpisodes drives env with opts.Policy, choosing among the actions its
// mask marks legal.
func runEpisodes[I any](env maskedEnv[I], opts runOptions, desc describe[I]) (*RunResults, error) {
	res := &RunResults{Env: opts.Env, Seed: opts.Seed, Policy: opts.PolicyName, Episodes: make([]EpisodeResult, 0, opts.Episodes)}
	total := 0.0
	for ep := 0; ep < opts.Episodes; ep++ {
		et := trace.NewEpisodeTrace(opts.Env, opts.Seed)
		m := env.Reset()
		for {
			legal := mask.Legal(m.Mask)
			action := opts.Policy.Choose(legal, env.ActionCount())
			tr, err := env.Step(action)
			if err != nil {
				return nil, fmt.Errorf("episode %d step %d: %w", ep, len(et.Steps), err)
			}
			rec := desc(action, tr)
			rec.Reward = tr.Reward
			rec.Done = tr.Done
			rec.Legal = len(legal)
			et.Record(rec)
			if opts.Recorder != nil {
				opts.Recorder.ObserveStep(opts.Env, rec)
			}
			if tr.Done {
				break
			}
			m = tr.Masked
		}

		summary := trace.Summarize(et)
		if opts.Recorder != nil {
			opts.Recorder.ObserveEpisode(opts.Env, summary)
		}
		logrus.Infof("episode %d (%s): %d steps, reward %.2f", ep, et.ID, summary.Steps, summary.TotalReward)
		r := EpisodeResult{ID: et.ID, Summary: summary}
		if opts.KeepSteps {
			r.Steps = et.Steps
		}
		res.Episodes = append(res.Episodes, r)
		total += summary.TotalReward
	}
	res.MeanReward = total / float64(opts.Episodes)
	return res, nil
}

// SaveResults prints res to w and, when path is set, writes it there too.
func SaveResults(w io.Writer, res *RunResults, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	fmt.Fprintln(w, "=== Episode Results ===")
	fmt.Fprintln(w, string(data))
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	logrus.Infof("Results written to: %s", path)
	return nil
}
