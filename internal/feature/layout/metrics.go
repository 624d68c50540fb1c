package layout

import "github.com/prometheus/client_golang/prometheus"

var (
	profileUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cipherpanel_profile_updates_total",
		Help: "Profile replacements (each one resets the layout lifecycle)",
	})
	layoutsComputed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cipherpanel_layouts_computed_total",
		Help: "Successful homomorphic layout computations",
	})
	decryptRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cipherpanel_decryption_requests_total",
		Help: "Decryption requests submitted to the oracle",
	})
	layoutsRevealed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cipherpanel_layouts_revealed_total",
		Help: "Layouts finalized by a verified oracle callback",
	})
	callbackRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cipherpanel_callback_rejected_total",
		Help: "Oracle callbacks rejected before mutating state",
	}, []string{"reason"})
	computeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cipherpanel_compute_duration_seconds",
		Help:    "Wall time of one two-pass accumulator computation",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		profileUpdates, layoutsComputed, decryptRequests,
		layoutsRevealed, callbackRejected, computeDuration,
	)
}
