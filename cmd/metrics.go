package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metro_requests_total",
		Help: "HTTP requests served, by endpoint and status code",
	}, []string{"endpoint", "status"})

	upstreamErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metro_upstream_errors_total",
		Help: "Failed fetches against the realtime arrivals API",
	})

	assembleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metro_assemble_duration_seconds",
		Help:    "Time spent assembling itineraries",
		Buckets: prometheus.DefBuckets,
	})
)
