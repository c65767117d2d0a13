// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	relayPostsTotal           *prometheus.CounterVec
	relayHarvestPagesTotal    *prometheus.CounterVec
	relayReleaseCyclesTotal   *prometheus.CounterVec
	relayInventorySize        prometheus.Gauge
	relayRateLimitWaitSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		relayPostsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_posts_total",
				Help: "Total publish attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		relayHarvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_harvest_pages_total",
				Help: "Total harvest runs, labeled by result.",
			},
			[]string{"result"},
		)

		relayReleaseCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_release_cycles_total",
				Help: "Total release cycles, labeled by trigger.",
			},
			[]string{"trigger"},
		)

		relayInventorySize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_inventory_size",
				Help: "Number of harvested items not yet published.",
			},
		)

		relayRateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_rate_limit_wait_seconds",
				Help:    "Histogram of channel rate limit wait durations.",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePost increments the publish attempt counter.
func ObservePost(outcome string) {
	if relayPostsTotal == nil {
		return
	}
	relayPostsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHarvest increments the harvest run counter.
func ObserveHarvest(result string) {
	if relayHarvestPagesTotal == nil {
		return
	}
	relayHarvestPagesTotal.WithLabelValues(result).Inc()
}

// ObserveReleaseCycle increments the release cycle counter.
func ObserveReleaseCycle(trigger string) {
	if relayReleaseCyclesTotal == nil {
		return
	}
	relayReleaseCyclesTotal.WithLabelValues(trigger).Inc()
}

// SetInventorySize records the current unposted item count.
func SetInventorySize(n int) {
	if relayInventorySize == nil {
		return
	}
	relayInventorySize.Set(float64(n))
}

// ObserveRateLimitWait records a rate limit wait duration in seconds.
func ObserveRateLimitWait(seconds float64) {
	if relayRateLimitWaitSeconds == nil {
		return
	}
	relayRateLimitWaitSeconds.Observe(seconds)
}
