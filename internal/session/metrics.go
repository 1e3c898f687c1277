package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liquiditytrade",
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions whose coordination loop is running.",
	})
	snapshotsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liquiditytrade",
		Subsystem: "session",
		Name:      "snapshots_total",
		Help:      "Published session snapshots, by aggregated state.",
	}, []string{"state"})
	proceedRefused = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liquiditytrade",
		Subsystem: "session",
		Name:      "proceed_refused_total",
		Help:      "Proceed calls that did not yield a payload, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(sessionsActive, snapshotsPublished, proceedRefused)
}
