package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UnmatchedRoute is the route label for requests that only reached the fallback handler
const UnmatchedRoute = "unmatched"

const unmatchedRouteLocal = "metrics_unmatched_route"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shortener",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Redirects are the hot path, so the buckets start at one millisecond
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shortener",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shortener",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)
)

// MetricsConfig configures the request metrics middleware
type MetricsConfig struct {
	// SkipPaths are served without being recorded (probes, the scrape endpoint)
	SkipPaths []string
}

// MarkUnmatched flags a request as handled by the not-found fallback
func MarkUnmatched(c fiber.Ctx) {
	c.Locals(unmatchedRouteLocal, true)
}

// Metrics records request count, latency and in-flight requests per route template.
// Requests no route matched share the UnmatchedRoute label so scanners cannot grow the label set.
func Metrics(cfg MetricsConfig) fiber.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  routeLabel(c),
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

func routeLabel(c fiber.Ctx) string {
	if unmatched, _ := c.Locals(unmatchedRouteLocal).(bool); unmatched {
		return UnmatchedRoute
	}
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return UnmatchedRoute
}
