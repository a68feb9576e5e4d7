// Package metrics holds the Prometheus collectors shared by the server and
// the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "housesplit"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	SummariesComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_computed_total",
		Help:      "Month summaries computed, by how the month's shares were resolved.",
	}, []string{"source"})

	SettlementsProposed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlements_per_summary",
		Help:      "Number of settlements proposed per computed summary.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	SummaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_cache_lookups_total",
		Help:      "Summary cache lookups by result.",
	}, []string{"result"})

	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "amqp_messages_published_total",
		Help:      "Messages published to the broker by outcome.",
	}, []string{"outcome"})

	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "amqp_messages_consumed_total",
		Help:      "Messages consumed from the broker by outcome.",
	}, []string{"outcome"})

	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Month summary exports by backend and outcome.",
	}, []string{"backend", "outcome"})
)
