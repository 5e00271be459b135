// Package metrics holds the Prometheus instruments of the login portal.
// All collectors are registered with the global registry, which echoprometheus
// serves on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcome labels.
const (
	OutcomeComplete       = "complete"
	OutcomeIncomplete     = "incomplete"
	OutcomeSignupRequired = "signup_required"
	OutcomeFailed         = "failed"
)

var (
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ffland",
			Name:      "login_attempts_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"})

	LoginFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ffland",
			Name:      "login_failures_total",
			Help:      "Failed logins by method and the stage they failed in.",
		}, []string{"method", "stage"})

	LoginDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ffland",
			Name:      "login_duration_seconds",
			Help:      "Time from credential submission to routing decision.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"})

	TokenRevocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ffland",
			Name:      "token_revocations_total",
			Help:      "Federated token revocations after a failed login, by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		LoginAttemptsTotal,
		LoginFailuresTotal,
		LoginDurationSeconds,
		TokenRevocationsTotal,
	)
}

// ObserveLogin records one finished login attempt.
func ObserveLogin(method, outcome string, took time.Duration) {
	LoginAttemptsTotal.WithLabelValues(method, outcome).Inc()
	LoginDurationSeconds.WithLabelValues(method).Observe(took.Seconds())
}

// ObserveFailure records the stage a failed login stopped at.
func ObserveFailure(method, stage string) {
	LoginFailuresTotal.WithLabelValues(method, stage).Inc()
}

// HTTPMiddleware returns the request metrics middleware. Its collectors can
// only be registered once per process, so every server shares one instance.
var HTTPMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("ffland")
})
