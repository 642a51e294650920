// Package metrics exposes prometheus instruments for jobs, decisions, actions and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every instrument the agent records
type Collector struct {
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	jobCycles    prometheus.Histogram

	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec

	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the instruments on reg under namespace
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	f := promauto.With(reg)
	c := &Collector{
		logger: logger.Named("metrics"),
	}

	c.jobsStarted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_started_total",
		Help:      "Total number of jobs started",
	})

	c.jobsFinished = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs finished, by status and reason",
		},
		[]string{"status", "reason"},
	)

	c.jobsRunning = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_running",
		Help:      "Number of jobs currently running",
	})

	c.jobCycles = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_cycles",
		Help:      "Decision cycles used per finished job",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})

	c.decisionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of decision requests",
		},
		[]string{"provider", "status"},
	)

	c.decisionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Decision request duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	c.actionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of executed actions",
		},
		[]string{"kind", "status"},
	)

	c.actionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.logger.Debug("Metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordJobStarted counts a newly registered job
func (c *Collector) RecordJobStarted() {
	c.jobsStarted.Inc()
	c.jobsRunning.Inc()
}

// RecordJobFinished counts a job reaching a terminal status
func (c *Collector) RecordJobFinished(status, reason string, cycles int) {
	c.jobsFinished.WithLabelValues(status, reason).Inc()
	c.jobsRunning.Dec()
	c.jobCycles.Observe(float64(cycles))
}

// RecordDecision records one decision request
func (c *Collector) RecordDecision(provider string, duration time.Duration, err error) {
	c.decisionsTotal.WithLabelValues(provider, outcome(err)).Inc()
	c.decisionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordAction records one executed action
func (c *Collector) RecordAction(kind string, duration time.Duration, err error) {
	c.actionsTotal.WithLabelValues(kind, outcome(err)).Inc()
	c.actionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
