package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hearth",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hearth",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "completion",
			Name:      "requests_total",
			Help:      "Chore completion attempts by outcome.",
		},
		[]string{"outcome"},
	)

	degraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "completion",
			Name:      "degraded_total",
			Help:      "Completions where a best-effort step failed.",
		},
		[]string{"step"},
	)

	pointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "points",
			Name:      "awarded_total",
			Help:      "Points awarded, split into base and streak bonus.",
		},
		[]string{"kind"},
	)

	penalties = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "penalty",
			Name:      "events_total",
			Help:      "Late penalties applied and forgiven.",
		},
		[]string{"event"},
	)

	penaltyPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "penalty",
			Name:      "points_total",
			Help:      "Points deducted by penalties and refunded by forgiveness.",
		},
		[]string{"event"},
	)

	backgroundTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hearth",
			Subsystem: "background",
			Name:      "tasks_total",
			Help:      "Best-effort background tasks by result.",
		},
		[]string{"task", "result"},
	)

	jobRuns = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hearth",
			Subsystem: "scheduler",
			Name:      "job_run_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		completions,
		degraded,
		pointsAwarded,
		penalties,
		penaltyPoints,
		backgroundTasks,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordCompletion counts a completion attempt. outcome is one of
// completed, conflict, forbidden, not_found or error.
func RecordCompletion(outcome string) {
	completions.WithLabelValues(outcome).Inc()
}

// RecordDegraded counts a best-effort completion step that failed.
func RecordDegraded(step string) {
	degraded.WithLabelValues(step).Inc()
}

func RecordPointsAwarded(base, bonus int) {
	pointsAwarded.WithLabelValues("base").Add(float64(base))
	if bonus > 0 {
		pointsAwarded.WithLabelValues("streak_bonus").Add(float64(bonus))
	}
}

func RecordPenaltyApplied(points int) {
	penalties.WithLabelValues("applied").Inc()
	penaltyPoints.WithLabelValues("applied").Add(float64(points))
}

func RecordPenaltyForgiven(points int) {
	penalties.WithLabelValues("forgiven").Inc()
	penaltyPoints.WithLabelValues("forgiven").Add(float64(points))
}

// RecordBackgroundTask counts a background task result: ok, error, panic
// or dropped.
func RecordBackgroundTask(task, result string) {
	backgroundTasks.WithLabelValues(task, result).Inc()
}

// RecordJobRun records a scheduled job execution.
func RecordJobRun(job string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades work
// behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// canonicalPath collapses IDs so label cardinality stays bounded:
// /api/chores/<uuid>/complete becomes /api/chores/:id/complete.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) == 36 && strings.Count(s, "-") == 4 {
		return true
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
