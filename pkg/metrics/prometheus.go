// Package metrics provides Prometheus metrics for antiplag runs.
//
// A run is a short-lived batch job, so metrics are not scraped. They are
// written once to a node-exporter textfile when a run finishes.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all antiplag metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Archive
	submissionsAccepted   prometheus.Counter
	submissionsDuplicate  prometheus.Counter
	submissionsRejected   prometheus.Counter
	adminFoldersSkipped   prometheus.Counter
	archiveBytesExtracted prometheus.Counter

	// Comparison service
	mossRequestDuration *prometheus.HistogramVec
	mossFilesSent       prometheus.Counter

	// Report
	problemsProcessed  prometheus.Counter
	matchGroupsSeen    prometheus.Counter
	matchGroupsFlagged prometheus.Counter
	usersFlagged       prometheus.Gauge

	// Errors
	errorsByComponent *prometheus.CounterVec

	runDuration prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure replaces the global metrics with a fresh set on a new registry.
// Call it before a run starts recording; earlier values are discarded.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "antiplag",
		subsystem:        "run",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissionsAccepted = m.counter("submissions_accepted_total",
		"Accepted submissions copied into a problem directory")
	m.submissionsDuplicate = m.counter("submissions_duplicate_total",
		"Accepted resubmissions skipped because the user already has a file for the problem")
	m.submissionsRejected = m.counter("submissions_rejected_total",
		"Submissions whose verdict is not OK")
	m.adminFoldersSkipped = m.counter("admin_folders_skipped_total",
		"User folders skipped because they belong to an administrator")
	m.archiveBytesExtracted = m.counter("archive_bytes_extracted_total",
		"Uncompressed bytes written while extracting the export archive")

	m.mossRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "moss_request_duration_seconds",
		Help:        "Latency of comparison service calls by operation",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.mossFilesSent = m.counter("moss_files_sent_total",
		"Source files uploaded to the comparison service")

	m.problemsProcessed = m.counter("problems_processed_total",
		"Problems compared end to end")
	m.matchGroupsSeen = m.counter("match_groups_total",
		"Match groups extracted from comparison reports")
	m.matchGroupsFlagged = m.counter("match_groups_flagged_total",
		"Match groups where both sides reached the similarity threshold")
	m.usersFlagged = m.gauge("users_flagged",
		"Distinct users flagged in the last run")

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Run-terminating errors by component",
		ConstLabels: m.constLabels,
	}, []string{"component"})

	m.runDuration = m.gauge("duration_seconds", "Wall time of the last run")
}

// RecordSubmissionAccepted counts an accepted submission copied to the workspace.
func RecordSubmissionAccepted() { globalManager.submissionsAccepted.Inc() }

// RecordSubmissionDuplicate counts an accepted resubmission that was skipped.
func RecordSubmissionDuplicate() { globalManager.submissionsDuplicate.Inc() }

// RecordSubmissionRejected counts a submission with a non-OK verdict.
func RecordSubmissionRejected() { globalManager.submissionsRejected.Inc() }

// RecordAdminSkipped counts a skipped administrator folder.
func RecordAdminSkipped() { globalManager.adminFoldersSkipped.Inc() }

// AddArchiveBytes adds extracted byte volume.
func AddArchiveBytes(n uint64) { globalManager.archiveBytesExtracted.Add(float64(n)) }

// RecordMossDuration observes the latency of a comparison service call.
// operation is "submit" or "fetch".
func RecordMossDuration(operation string, seconds float64) {
	globalManager.mossRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// AddMossFilesSent counts files uploaded to the comparison service.
func AddMossFilesSent(n int) { globalManager.mossFilesSent.Add(float64(n)) }

// RecordProblemProcessed counts a fully processed problem.
func RecordProblemProcessed() { globalManager.problemsProcessed.Inc() }

// AddMatchGroups counts extracted match groups.
func AddMatchGroups(n int) { globalManager.matchGroupsSeen.Add(float64(n)) }

// AddFlaggedGroups counts match groups above the threshold.
func AddFlaggedGroups(n int) { globalManager.matchGroupsFlagged.Add(float64(n)) }

// UpdateUsersFlagged sets the number of flagged users.
func UpdateUsersFlagged(n int) { globalManager.usersFlagged.Set(float64(n)) }

// RecordError counts a run-terminating error for a component.
func RecordError(component string) { globalManager.errorsByComponent.WithLabelValues(component).Inc() }

// UpdateRunDuration sets the wall time of the run.
func UpdateRunDuration(seconds float64) { globalManager.runDuration.Set(seconds) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes all registered metrics to path in the text exposition
// format understood by the node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
