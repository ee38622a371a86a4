package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_requests_total",
			Help: "Total number of Graph API calls",
		},
		[]string{"method", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_request_duration_seconds",
			Help:    "Duration of Graph API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	batchSubrequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_batch_subrequests_total",
			Help: "Total number of batch sub-requests by outcome",
		},
		[]string{"outcome"},
	)

	pagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_pages_fetched_total",
			Help: "Total number of pages fetched while following cursors",
		},
	)
)
