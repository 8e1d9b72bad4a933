package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_front",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route, and status code",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "social_front",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	oauthFlowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_front",
		Name:      "oauth_flows_total",
		Help:      "Completed OAuth connect flows by platform and outcome",
	}, []string{"platform", "outcome"})

	postsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social_front",
		Name:      "posts_published_total",
		Help:      "Posts published by platform and outcome",
	}, []string{"platform", "outcome"})
)

// metricsMiddleware records request counts and latency under a stable route
// label (the registered pattern, not the raw path, to bound cardinality)
func metricsMiddleware(route string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timer := prometheus.NewTimer(requestDuration.WithLabelValues(route))
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			timer.ObserveDuration()
			requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
		})
	}
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
