package game

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/woozymasta/sonar/pkg/transport"
	"github.com/woozymasta/sonar/pkg/wire"
)

var (
	metricQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sonar",
		Subsystem: "a2s",
		Name:      "queries_total",
		Help:      "Total number of A2S queries by kind and result",
	}, []string{"kind", "result"})
	metricQuerySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sonar",
		Subsystem: "a2s",
		Name:      "query_seconds",
		Help:      "Latency of A2S queries, challenge round trip included",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"kind"})
)

func queryResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, wire.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
