package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(credentialsLifecycleTotal, credentialCodeRetriesTotal, credentialsActive)
}

var (
	credentialsLifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_lifecycle_total",
			Help: "Lifecycle actions by action and outcome.",
		},
		[]string{"action", "result"}, // action: issue, reissue, invalidate; result: ok, error
	)

	credentialCodeRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_code_retries_total",
			Help: "Code generation attempts discarded because a code was already taken.",
		},
	)

	credentialsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "credentials_active",
			Help: "Active, unexpired credentials as of the last stats run.",
		},
	)
)

func IncLifecycle(action, result string) {
	credentialsLifecycleTotal.WithLabelValues(norm(action), norm(result)).Inc()
}

func IncCodeRetry() {
	credentialCodeRetriesTotal.Inc()
}

func SetCredentialsActive(n int) {
	credentialsActive.Set(float64(n))
}
