package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	// runsTotal counts job firings by kind and outcome.
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecheck_scheduler_runs_total",
			Help: "Scheduled job runs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// jobsGauge tracks how many jobs of each kind are scheduled.
	jobsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vibecheck_scheduler_jobs",
			Help: "Currently scheduled jobs by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, jobsGauge)
}
