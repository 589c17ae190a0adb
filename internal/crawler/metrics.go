package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricServers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sonar",
		Subsystem: "crawler",
		Name:      "servers_total",
		Help:      "Servers handled by crawls, by outcome",
	}, []string{"result"})
	metricLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sonar",
		Subsystem: "crawler",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last crawl finished",
	})
)

const (
	resultDiscovered = "discovered"
	resultDuplicate  = "duplicate"
	resultSaved      = "saved"
	resultFailed     = "failed"
	resultStoreError = "store_error"
)
