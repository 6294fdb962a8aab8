// Package metrics exposes Prometheus instrumentation for the ticker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts feed fetch attempts per feed
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsticker_fetch_attempts_total",
		Help: "Number of RSS fetch attempts",
	}, []string{"feed"})

	// FetchErrors counts failed feed fetches per feed
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsticker_fetch_errors_total",
		Help: "Number of RSS fetches that failed after retries",
	}, []string{"feed"})

	// FetchDuration observes feed fetch latency
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsticker_fetch_duration_seconds",
		Help:    "Duration of RSS fetches",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// HeadlineCount tracks the number of fresh headlines in the cache
	HeadlineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsticker_headlines",
		Help: "Current number of fresh headlines",
	})

	// TickerDuration tracks the computed display duration
	TickerDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsticker_display_duration_seconds",
		Help: "Current ticker display duration",
	})

	// FramesRendered counts rendered ticker frames
	FramesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsticker_frames_rendered_total",
		Help: "Number of ticker frames rendered",
	})

	// CachePurged counts headlines removed by cache maintenance
	CachePurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsticker_cache_purged_total",
		Help: "Number of expired headlines purged from the cache",
	})
)
