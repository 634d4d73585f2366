package recommendation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_batch_runs_total",
			Help: "Total number of completed recommendation batch runs",
		},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reco_batch_duration_seconds",
			Help:    "Wall-clock duration of recommendation batch runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	batchUsersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_batch_users_processed_total",
			Help: "Total users processed across batch runs",
		},
	)

	batchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_batch_errors_total",
			Help: "Total per-user errors accumulated across batch runs",
		},
	)

	recosGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_recommendations_generated_total",
			Help: "Total recommendations generated and stored",
		},
	)

	coldStartUsers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_cold_start_users_total",
			Help: "Total users served popularity-based cold-start lists",
		},
	)

	recoScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reco_scores",
			Help:    "Distribution of recommendation scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	recoClicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reco_clicks_total",
			Help: "Total recommendation clicks logged",
		},
	)
)

// RecordBatchRun updates the batch counters from a completed run.
func RecordBatchRun(result *BatchResult) {
	batchRunsTotal.Inc()
	batchDuration.Observe(float64(result.DurationMs) / 1000)
	batchUsersProcessed.Add(float64(result.UsersProcessed))
	batchErrorsTotal.Add(float64(len(result.Errors)))
	recosGenerated.Add(float64(result.RecosGenerated))
	coldStartUsers.Add(float64(result.ColdStartUsers))
}

func RecordScore(score float64) {
	recoScores.Observe(score)
}

func RecordClick() {
	recoClicksTotal.Inc()
}
