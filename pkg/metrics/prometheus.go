// Package metrics provides Prometheus metrics for the allot allocation service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the allot service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Allocation runs
	runsTotal           *prometheus.CounterVec
	runDuration         prometheus.Histogram
	assignmentsTotal    *prometheus.CounterVec
	unassignedEmployees prometheus.Gauge
	unfilledProjects    prometheus.Gauge

	// Ledger operations outside a run
	resetsTotal        prometheus.Counter
	projectsClosed     prometheus.Counter
	employeesReleased  prometheus.Counter
	phaseExpirations   prometheus.Counter
	schedulerJobsTotal *prometheus.CounterVec

	// Repository
	storeApplyDuration prometheus.Histogram
	recordsTotal       *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsTotal *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Label names the metrics below partition on; constant labels may not reuse them.
var variableLabels = []string{ //nolint:gochecknoglobals // fixed label vocabulary
	"outcome", "choice_rank", "tier", "job", "kind",
	"endpoint", "method", "status_code", "component", "type",
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := configure(opts)
	m.initializeMetrics()
	return m
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it at start-up, before anything records or serves metrics.
func Init(opts ...Option) error {
	registry := prometheus.NewRegistry()
	m := configure(append(opts, WithPrometheusRegistry(registry)))
	for _, name := range variableLabels {
		if _, ok := m.customLabels[name]; ok {
			return fmt.Errorf("metrics: constant label %q clashes with a metric label", name)
		}
	}
	m.initializeMetrics()
	globalManager = m
	customRegistry = registry
	return nil
}

func configure(opts []Option) *Manager {
	m := &Manager{
		namespace:        "allot",
		subsystem:        "allocation",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Total number of allocation runs by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_milliseconds",
		Help:        "Duration of allocation runs in milliseconds, snapshot to commit",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.assignmentsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "assignments_total",
		Help:        "Committed employee/project pairings by choice rank and match tier",
		ConstLabels: labels,
	}, []string{"choice_rank", "tier"})

	m.unassignedEmployees = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "unassigned_employees",
		Help:        "Employees left without a project by the last run",
		ConstLabels: labels,
	})

	m.unfilledProjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "unfilled_projects",
		Help:        "Projects left without any employee by the last run",
		ConstLabels: labels,
	})

	m.resetsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "resets_total",
		Help:        "Total number of phase resets",
		ConstLabels: labels,
	})

	m.projectsClosed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "projects_closed_total",
		Help:        "Total number of projects marked completed",
		ConstLabels: labels,
	})

	m.employeesReleased = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "employees_released_total",
		Help:        "Employees released from their phase after all their projects completed",
		ConstLabels: labels,
	})

	m.phaseExpirations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "phase_expirations_total",
		Help:        "Phases deactivated because their window ended",
		ConstLabels: labels,
	})

	m.schedulerJobsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduler_jobs_total",
		Help:        "Scheduled job executions by job and outcome",
		ConstLabels: labels,
	}, []string{"job", "outcome"})

	m.storeApplyDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_apply_duration_milliseconds",
		Help:        "Duration of changeset commits in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.recordsTotal = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_total",
		Help:        "Stored records by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "type"})
}

// RecordRun increments the run counter for an outcome (ok, invalid, cancelled, failed).
func RecordRun(outcome string) {
	globalManager.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordRunDuration records the duration of one run in milliseconds.
func RecordRunDuration(ms float64) {
	globalManager.runDuration.Observe(ms)
}

// RecordAssignment counts one committed pairing.
func RecordAssignment(choiceRank, tier string) {
	globalManager.assignmentsTotal.WithLabelValues(choiceRank, tier).Inc()
}

// UpdateRunOutcome sets the leftover gauges of the last run.
func UpdateRunOutcome(unassigned, unfilled int) {
	globalManager.unassignedEmployees.Set(float64(unassigned))
	globalManager.unfilledProjects.Set(float64(unfilled))
}

// RecordReset increments the reset counter.
func RecordReset() {
	globalManager.resetsTotal.Inc()
}

// RecordProjectClosed counts a closed project and the employees it released.
func RecordProjectClosed(released int) {
	globalManager.projectsClosed.Inc()
	globalManager.employeesReleased.Add(float64(released))
}

// RecordPhaseExpirations adds n expired phases.
func RecordPhaseExpirations(n int) {
	globalManager.phaseExpirations.Add(float64(n))
}

// RecordSchedulerJob counts one execution of a scheduled job.
func RecordSchedulerJob(job, outcome string) {
	globalManager.schedulerJobsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordStoreApplyDuration records a changeset commit duration in milliseconds.
func RecordStoreApplyDuration(ms float64) {
	globalManager.storeApplyDuration.Observe(ms)
}

// UpdateRecordsTotal sets the stored record count for a kind.
func UpdateRecordsTotal(kind string, count int) {
	globalManager.recordsTotal.WithLabelValues(kind).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsTotal.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
