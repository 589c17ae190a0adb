package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sonar",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code",
	}, []string{"method", "code"})
	metricRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sonar",
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	metricAnnounces = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sonar",
		Subsystem: "announce",
		Name:      "requests_total",
		Help:      "Announce requests by outcome",
	}, []string{"result"})
	metricQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sonar",
		Subsystem: "announce",
		Name:      "queue_length",
		Help:      "Announced servers waiting for a query",
	})
)
