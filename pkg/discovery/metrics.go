package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "discovery",
		Name:      "runs_total",
		Help:      "Discovery runs by terminal status",
	}, []string{"status"})

	dependenciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sieve",
		Subsystem: "discovery",
		Name:      "dependencies_total",
		Help:      "Distinct dependencies collected, by kind",
	}, []string{"kind"})
)
