// Package observability provides the Prometheus collectors exported on
// /metrics.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts HTTP requests by method, route template, and
	// status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findfirst_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "findfirst_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthResolutionsTotal counts identity resolution outcomes by
	// credential source ("cookie", "bearer", "basic", "none") and result.
	AuthResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findfirst_auth_resolutions_total",
			Help: "Identity resolution outcomes",
		},
		[]string{"source", "result"},
	)

	// TagSearchesTotal counts tag searches by outcome ("ok", "invalid",
	// "unavailable").
	TagSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findfirst_tag_searches_total",
			Help: "Tag searches",
		},
		[]string{"outcome"},
	)

	// TitleSearchesTotal counts title keyword searches by outcome ("ok",
	// "invalid", "unavailable").
	TitleSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findfirst_title_searches_total",
			Help: "Title keyword searches",
		},
		[]string{"outcome"},
	)

	// TagSearchResults records how many bookmarks a successful search returned.
	TagSearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "findfirst_tag_search_results",
			Help:    "Bookmarks returned per tag search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findfirst_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthResolutionsTotal,
		TagSearchesTotal,
		TagSearchResults,
		TitleSearchesTotal,
		RateLimitRejectedTotal,
	)
}
