package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"veedor/internal/domain"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	SnapshotsNormalized   prometheus.Counter
	NormalizationFailures prometheus.Counter
	ChainAppends          prometheus.Counter
	ChainVerifyFailures   prometheus.Counter
	AlertsBySeverity      *prometheus.CounterVec
	RuleExecutionErrors   *prometheus.CounterVec
	AuditRunDuration      prometheus.Histogram
}

// New creates and registers all pipeline metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		SnapshotsNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veedor_snapshots_normalized_total",
			Help: "Raw documents successfully normalized into canonical snapshots",
		}),
		NormalizationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veedor_normalization_failures_total",
			Help: "Raw documents skipped because normalization failed",
		}),
		ChainAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veedor_chain_appends_total",
			Help: "Hash records appended across all source chains",
		}),
		ChainVerifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veedor_chain_verify_failures_total",
			Help: "Chain verifications that found a broken link",
		}),
		AlertsBySeverity: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veedor_alerts_total",
			Help: "Alerts emitted by rule evaluation, by severity",
		}, []string{"severity"}),
		RuleExecutionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veedor_rule_execution_errors_total",
			Help: "Rule invocations recovered as diagnostics, by rule",
		}, []string{"rule_id"}),
		AuditRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veedor_audit_run_duration_seconds",
			Help:    "Wall time of complete audit runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveAlert bumps the severity counter for one alert.
func (m *Metrics) ObserveAlert(severity domain.Severity) {
	m.AlertsBySeverity.WithLabelValues(string(severity)).Inc()
}
