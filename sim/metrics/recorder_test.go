package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allocsim/allocsim/sim/trace"
)

func TestRecorder_CountsSteps(t *testing.T) {
	// GIVEN a recorder on a private registry
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	// WHEN a matching and a packing step are observed
	r.ObserveStep("matching", trace.StepRecord{Matched: true, Reward: 1})
	r.ObserveStep("matching", trace.StepRecord{})
	r.ObserveStep("binpack", trace.StepRecord{Penalized: true, Reward: -100})

	// THEN counters are split by env
	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps.WithLabelValues("matching")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.matches.WithLabelValues("matching")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.penalties.WithLabelValues("binpack")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.penalties.WithLabelValues("matching")))
}

func TestRecorder_ObserveEpisode(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	et := trace.NewEpisodeTrace("binpack", 1)
	et.Record(trace.StepRecord{Reward: -7})
	et.Record(trace.StepRecord{Reward: -6, Done: true})
	r.ObserveEpisode("binpack", trace.Summarize(et))
	r.ObserveCacheHit()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.episodes.WithLabelValues("binpack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheHits))

	expected := `
# HELP allocsim_episodes_total Episodes run to completion.
# TYPE allocsim_episodes_total counter
allocsim_episodes_total{env="binpack"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "allocsim_episodes_total"))
	n, err := testutil.GatherAndCount(reg, "allocsim_episode_reward")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
