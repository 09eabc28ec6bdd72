package slackapi

import "github.com/prometheus/client_golang/prometheus"

var (
	apiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecheck_slack_api_calls_total",
			Help: "Slack Web API calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	apiRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecheck_slack_api_retries_total",
			Help: "Slack Web API retries by method and reason.",
		},
		[]string{"method", "reason"},
	)
)

func init() {
	prometheus.MustRegister(apiCalls, apiRetries)
}
