package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HttpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	DomainEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tweeter_domain_events_total",
		Help: "Total number of recorded social events",
	}, []string{"type"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tweeter_ws_clients",
		Help: "Number of connected websocket clients",
	})

	CommunityTotals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tweeter_community_totals",
		Help: "Stored users, tweets, likes and follows",
	}, []string{"kind"})
)
