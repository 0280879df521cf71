// Package metrics exposes Prometheus collectors for the chat service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationRequests counts model generation calls by persona and outcome.
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatclone",
		Name:      "generation_requests_total",
		Help:      "Number of model generation requests.",
	}, []string{"assistant", "outcome"})

	// GenerationDuration observes end-to-end model generation latency.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatclone",
		Name:      "generation_duration_seconds",
		Help:      "Model generation latency in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// TitleRefreshes counts background conversation title refresh attempts.
	TitleRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatclone",
		Name:      "title_refresh_total",
		Help:      "Number of background title refresh attempts.",
	}, []string{"outcome"})
)

// ObserveGeneration records one generation call.
func ObserveGeneration(assistant string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GenerationRequests.WithLabelValues(assistant, outcome).Inc()
	GenerationDuration.Observe(time.Since(start).Seconds())
}
