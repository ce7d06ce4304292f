package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reason label values.
const (
	DropUnknownSession = "unknown_session"
	DropDisabled       = "disabled"
	DropCorpusNotReady = "corpus_not_ready"
)

// Metrics tracks reply pipeline counters and backend latency.
type Metrics struct {
	replies        prometheus.Counter
	fallbacks      prometheus.Counter
	ownerTurns     prometheus.Counter
	drops          *prometheus.CounterVec
	backendLatency prometheus.Histogram
}

// NewMetrics creates and registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		replies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "doppelbot",
			Name:      "replies_total",
			Help:      "Generated replies delivered to counterparties.",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "doppelbot",
			Name:      "fallbacks_total",
			Help:      "Backend failures absorbed into fallback replies.",
		}),
		ownerTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "doppelbot",
			Name:      "owner_turns_total",
			Help:      "Owner messages recorded as conversation context.",
		}),
		drops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doppelbot",
			Name:      "drops_total",
			Help:      "Inbound messages dropped without a reply.",
		}, []string{"reason"}),
		backendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "doppelbot",
			Name:      "backend_latency_seconds",
			Help:      "Latency of generation backend calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}
