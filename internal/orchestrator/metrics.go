package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IamSamk/Portfolify/internal/domain"
)

var (
	metricsOnce     sync.Once
	deploymentTotal *prometheus.CounterVec
	attemptTotal    *prometheus.CounterVec
	attemptDuration prometheus.Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		deploymentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolify",
			Subsystem: "deploy",
			Name:      "deployments_total",
			Help:      "Terminal outcomes of deploy calls",
		}, []string{"code"})

		attemptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolify",
			Subsystem: "deploy",
			Name:      "attempts_total",
			Help:      "Per-account deployment attempts by outcome",
		}, []string{"account", "outcome", "reason"})

		attemptDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portfolify",
			Subsystem: "deploy",
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of single provider attempts",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		})

		for _, collector := range []prometheus.Collector{deploymentTotal, attemptTotal, attemptDuration} {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						if collector == deploymentTotal {
							deploymentTotal = v
						} else {
							attemptTotal = v
						}
					case prometheus.Histogram:
						attemptDuration = v
					}
				}
			}
		}
	})
}

func recordDeployment(code ResultCode) {
	initMetrics()
	deploymentTotal.WithLabelValues(string(code)).Inc()
}

func observeAttempt(attempt domain.Attempt, elapsed time.Duration) {
	initMetrics()
	attemptTotal.WithLabelValues(attempt.AccountID, string(attempt.Outcome), string(attempt.Reason)).Inc()
	attemptDuration.Observe(elapsed.Seconds())
}
