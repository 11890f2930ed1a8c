package layer

import "github.com/prometheus/client_golang/prometheus"

var (
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_layer_outcomes_total",
			Help: "Total number of per-property outcomes merged, by layer and outcome.",
		},
		[]string{"layer", "outcome"},
	)

	batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estimator_layer_batch_duration_seconds",
			Help:    "Time from batch submission to merged ledger, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"layer"},
	)

	idAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_layer_id_anomalies_total",
			Help: "Outcomes whose property id did not match exactly one queued property.",
		},
		[]string{"layer"},
	)
)

func init() {
	prometheus.MustRegister(outcomesTotal)
	prometheus.MustRegister(batchDuration)
	prometheus.MustRegister(idAnomalies)
}
