// Package metrics exports episode statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/allocsim/allocsim/sim/trace"
)

const namespace = "allocsim"

// Recorder holds the counters of one run. All metrics carry an "env" label.
type Recorder struct {
	steps         *prometheus.CounterVec
	episodes      *prometheus.CounterVec
	penalties     *prometheus.CounterVec
	matches       *prometheus.CounterVec
	episodeReward *prometheus.HistogramVec
	cacheHits     prometheus.Counter
}

// NewRecorder registers the metrics on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Engine steps taken.",
		}, []string{"env"}),
		episodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Episodes run to completion.",
		}, []string{"env"}),
		penalties: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_total",
			Help:      "Steps penalized for overflowing or targeting an empty level.",
		}, []string{"env"}),
		matches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Online arrivals matched to an offline vertex.",
		}, []string{"env"}),
		episodeReward: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_reward",
			Help:      "Total reward per episode.",
			Buckets:   []float64{-10000, -1000, -500, -100, -50, -10, 0, 10, 50, 100, 500, 1000},
		}, []string{"env"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_cache_hits_total",
			Help:      "Probability tables loaded from cache instead of resampled.",
		}),
	}
}

// ObserveStep counts one step.
func (r *Recorder) ObserveStep(env string, s trace.StepRecord) {
	r.steps.WithLabelValues(env).Inc()
	if s.Penalized {
		r.penalties.WithLabelValues(env).Inc()
	}
	if s.Matched {
		r.matches.WithLabelValues(env).Inc()
	}
}

// ObserveEpisode records the total reward of a finished episode.
func (r *Recorder) ObserveEpisode(env string, s *trace.TraceSummary) {
	r.episodes.WithLabelValues(env).Inc()
	r.episodeReward.WithLabelValues(env).Observe(s.TotalReward)
}

// ObserveCacheHit counts a probability table served from its cache file.
func (r *Recorder) ObserveCacheHit() { r.cacheHits.Inc() }
