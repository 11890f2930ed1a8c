package backend

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for task status.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_backend_tasks_total",
			Help: "Total number of tasks executed by the local backend.",
		},
		[]string{"status"},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimator_backend_task_duration_seconds",
			Help:    "Duration of a single task execution, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	queuedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "estimator_backend_queued_tasks",
			Help: "Number of tasks waiting for a free worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(queuedTasks)

	tasksTotal.WithLabelValues(statusSucceeded)
	tasksTotal.WithLabelValues(statusFailed)
}
