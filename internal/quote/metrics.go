package quote

import "github.com/prometheus/client_golang/prometheus"

var (
	quotesDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liquiditytrade",
		Subsystem: "quote",
		Name:      "dispatched_total",
		Help:      "Quote requests sent to the provider.",
	})
	quotesStale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liquiditytrade",
		Subsystem: "quote",
		Name:      "stale_total",
		Help:      "Quote results dropped because a newer request superseded them.",
	})
	quotesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liquiditytrade",
		Subsystem: "quote",
		Name:      "failed_total",
		Help:      "Quote requests that ended in an error, by error kind.",
	}, []string{"kind"})
	quoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liquiditytrade",
		Subsystem: "quote",
		Name:      "latency_seconds",
		Help:      "Provider quote latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(quotesDispatched, quotesStale, quotesFailed, quoteLatency)
}
