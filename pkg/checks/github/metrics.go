/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	mAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checks_github_api_requests_total",
			Help: "The total number of GitHub API requests made to publish checks",
		},
		[]string{"code", "method", "route"},
	)
	mAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checks_github_api_request_duration_seconds",
			Help:    "The duration of GitHub API requests made to publish checks",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
	mContextValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checks_github_context_validations_total",
			Help: "The number of GitHub checks contexts validated, by kind and outcome",
		},
		[]string{"context", "valid"},
	)
	mPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checks_github_published_total",
			Help: "The number of checks published to GitHub, by status and outcome",
		},
		[]string{"status", "outcome"},
	)
)

type routePattern struct {
	pattern *regexp.Regexp
	route   string
}

// routePatterns bucketize the API paths used to publish checks so the
// route label has a bounded cardinality.
var routePatterns = []routePattern{{
	pattern: regexp.MustCompile(`/repos/[^/]+/[^/]+/check-runs$`),
	route:   "/repos/{owner}/{repo}/check-runs",
}, {
	pattern: regexp.MustCompile(`/repos/[^/]+/[^/]+/check-runs/\d+$`),
	route:   "/repos/{owner}/{repo}/check-runs/{id}",
}, {
	pattern: regexp.MustCompile(`/repos/[^/]+/[^/]+/commits/[^/]+/check-runs$`),
	route:   "/repos/{owner}/{repo}/commits/{ref}/check-runs",
}, {
	pattern: regexp.MustCompile(`/app/installations/\d+/access_tokens$`),
	route:   "/app/installations/{id}/access_tokens",
}}

func bucketizeRoute(path string) string {
	for _, p := range routePatterns {
		if p.pattern.MatchString(path) {
			return p.route
		}
	}
	return "other"
}

// instrumentTransport records metrics and traces for requests sent by next.
func instrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return instrumentRequests(otelhttp.NewTransport(next))
}

func instrumentRequests(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		route := bucketizeRoute(r.URL.Path)
		start := time.Now()
		resp, err := next.RoundTrip(r)
		mAPIDuration.With(prometheus.Labels{"method": r.Method, "route": route}).Observe(time.Since(start).Seconds())

		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		mAPIRequests.With(prometheus.Labels{"code": code, "method": r.Method, "route": route}).Inc()
		return resp, err
	}
}
