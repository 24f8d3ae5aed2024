package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StrategyDirect labels attempts against the original source.
const StrategyDirect = "direct"

var (
	// AcquisitionsTotal tracks terminal outcomes per state and reason
	AcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fullres_acquisitions_total",
			Help: "Total number of acquisitions that reached a terminal state",
		},
		[]string{"state", "reason", "strategy"},
	)

	// AttemptsTotal tracks chain attempts per strategy and result
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fullres_attempts_total",
			Help: "Total number of fallback chain attempts",
		},
		[]string{"strategy", "result"},
	)

	// RaceLatency tracks how long one attempt race took
	RaceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fullres_race_latency_seconds",
			Help:    "Attempt race latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// FetchTotal tracks host fetches by result
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fullres_fetch_total",
			Help: "Total number of host fetches",
		},
		[]string{"result"},
	)

	// FetchBytes tracks downloaded bytes
	FetchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fullres_fetch_bytes_total",
			Help: "Total bytes read by host fetches",
		},
	)

	// KnownSources tracks the size of the known-failed / known-succeeded sets
	KnownSources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fullres_known_sources",
			Help: "Number of source urls with a terminal verdict",
		},
		[]string{"verdict"},
	)

	// InFlight tracks acquisitions currently attempting
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fullres_acquisitions_in_flight",
			Help: "Number of acquisitions currently attempting",
		},
	)
)
