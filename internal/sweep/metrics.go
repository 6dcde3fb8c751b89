package sweep

import "github.com/prometheus/client_golang/prometheus"

var (
	trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "backdoor", Subsystem: "sweep", Name: "trials_total", Help: "Trials run, by outcome."},
		[]string{"outcome"},
	)
	trialDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "backdoor", Subsystem: "sweep", Name: "trial_duration_seconds", Help: "Wall time of one trial.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12)},
	)
	cellsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "backdoor", Subsystem: "sweep", Name: "cells_persisted_total", Help: "Grid cells written by the aggregator."},
	)
	rowsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "backdoor", Subsystem: "sweep", Name: "rows_persisted_total", Help: "Replicate rows written by the aggregator."},
	)
)

func init() {
	_ = prometheus.Register(trialsTotal)
	_ = prometheus.Register(trialDuration)
	_ = prometheus.Register(cellsPersisted)
	_ = prometheus.Register(rowsPersisted)
}
