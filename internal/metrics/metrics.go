// Package metrics holds the Prometheus collectors shared by providers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "priceresolver"

var (
	// UpstreamRequests counts outbound attempts by provider and outcome
	// (ok, rate_limited, network, status).
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Outbound market-data requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	// CacheLookups counts cache hits and misses by provider and cache name.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Provider cache lookups by cache and result.",
	}, []string{"provider", "cache", "result"})

	// PriceLookups counts GetCurrentPrice results (found, absent).
	PriceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_lookups_total",
		Help:      "Price resolutions by provider and result.",
	}, []string{"provider", "result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
