package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rulesEvaluated counts oracle calls per strategy, cache hits excluded.
	rulesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "rules_evaluated_total",
		Help:      "Candidate rules sent to the oracle",
	}, []string{"strategy"})

	// rulesAccepted counts rules the oracle accepted per strategy.
	rulesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "rules_accepted_total",
		Help:      "Candidate rules accepted by the oracle",
	}, []string{"strategy"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "cache_hits_total",
		Help:      "Evaluation cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "cache_misses_total",
		Help:      "Evaluation cache misses",
	})

	// searchDuration measures wall time per completed search.
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Wall time of one search run",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"strategy"})

	checkpointSaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "search",
		Name:      "checkpoint_saves_total",
		Help:      "Checkpoints written during parallel searches",
	})
)
