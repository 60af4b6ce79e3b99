package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// Metrics holds the Prometheus collectors of the tutoring service.
type Metrics struct {
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec
	QuizScores   *prometheus.HistogramVec

	CapabilityCalls   *prometheus.CounterVec
	CapabilityLatency *prometheus.HistogramVec

	EventsPublished *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics registers the collectors once and returns the shared set.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "studybuddy_turns_total",
					Help: "Tutoring turns by routed activity and outcome",
				},
				[]string{"activity", "outcome"},
			),
			TurnDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "studybuddy_turn_duration_seconds",
					Help:    "Duration of tutoring turns in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
				},
				[]string{"activity"},
			),
			QuizScores: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "studybuddy_quiz_score",
					Help:    "Scores of graded quiz attempts",
					Buckets: prometheus.LinearBuckets(0, 10, 11),
				},
				[]string{"topic"},
			),
			CapabilityCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "studybuddy_capability_calls_total",
					Help: "Language model and lookup calls by capability and outcome",
				},
				[]string{"capability", "outcome"},
			),
			CapabilityLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "studybuddy_capability_latency_seconds",
					Help:    "Latency of capability calls in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
				},
				[]string{"capability"},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "studybuddy_events_published_total",
					Help: "Domain events handed to the publisher",
				},
				[]string{"type", "outcome"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "studybuddy_http_requests_total",
					Help: "HTTP requests by route and status",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "studybuddy_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return sharedMetrics
}

func (m *Metrics) RecordTurn(activity string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if activity == "" {
		activity = "unrouted"
	}
	m.TurnsTotal.WithLabelValues(activity, Outcome(err)).Inc()
	m.TurnDuration.WithLabelValues(activity).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordQuizScore(topic string, score int) {
	if m == nil {
		return
	}
	m.QuizScores.WithLabelValues(topic).Observe(float64(score))
}

// RecordCapability matches the llm.GuardConfig OnCall hook.
func (m *Metrics) RecordCapability(name string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(name, Outcome(err)).Inc()
	m.CapabilityLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, Outcome(err)).Inc()
}

func (m *Metrics) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Outcome buckets an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, contractx.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, contractx.ErrUpstream):
		return "upstream"
	case errors.Is(err, contractx.ErrStaleQuiz), errors.Is(err, contractx.ErrInvalidTransition):
		return "rejected"
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, contractx.ErrMalformedAttempt):
		return "invalid"
	default:
		return "error"
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
