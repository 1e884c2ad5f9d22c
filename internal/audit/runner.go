// Package audit drives a full audit run: normalize pending raw documents,
// extend each source's hash chain, evaluate every enabled rule pairwise, and
// assemble one report. Sources are independent, so they run in parallel; the
// merged output is deterministic regardless of scheduling.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"veedor/internal/domain"
	"veedor/internal/ledger"
	"veedor/internal/normalizer"
	"veedor/internal/platform/metrics"
	"veedor/internal/rules"
	"veedor/internal/store"
)

// ErrNoRulesEnabled fails a run before any processing when the configuration
// disables every rule: a silent no-op audit must not look like a clean one.
var ErrNoRulesEnabled = errors.New("no enabled rules configured")

// Runner owns one audit run over the pending raw documents.
type Runner struct {
	store      store.Store
	normalizer *normalizer.Normalizer
	cfg        rules.Config
	registry   []rules.Rule
	logger     *slog.Logger
	metrics    *metrics.Metrics
	workers    int
	now        func() time.Time
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithWorkers caps how many sources are audited concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithClock fixes the runner's notion of now for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(st store.Store, norm *normalizer.Normalizer, cfg rules.Config, opts ...Option) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if norm == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	r := &Runner{
		store:      st,
		normalizer: norm,
		cfg:        cfg,
		registry:   rules.Registry(),
		workers:    4,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// sourceResult is one worker's contribution, merged deterministically after
// all workers complete. chainFailure holds integrity breaks only; store and
// I/O problems go to opErr so callers can tell tampering from outages.
type sourceResult struct {
	sourceID     string
	alerts       []domain.Alert
	failures     []domain.NormalizationFailure
	diagnostics  []domain.RuleDiagnostic
	chainFailure string
	opErr        error
	tip          *domain.ChainTip
	snapshots    int
	earliest     time.Time
	latest       time.Time
}

// Run executes the audit over every pending document and always returns a
// report when processing ran, even with zero alerts: absence of findings is
// itself a recorded outcome. The error is non-nil only for failures that
// prevented the run from happening at all.
func (r *Runner) Run(ctx context.Context) (domain.AuditReport, error) {
	started := r.now()

	enabled := rules.EnabledIDs(r.cfg)
	if len(enabled) == 0 {
		return domain.AuditReport{}, ErrNoRulesEnabled
	}

	docs, err := r.store.ListRaw(ctx)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("list raw documents: %w", err)
	}

	bySource := groupBySource(docs)
	sourceIDs := make([]string, 0, len(bySource))
	for sourceID := range bySource {
		sourceIDs = append(sourceIDs, sourceID)
	}
	sort.Strings(sourceIDs)

	results := make(map[string]*sourceResult, len(sourceIDs))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for _, sourceID := range sourceIDs {
		group.Go(func() error {
			result := r.auditSource(groupCtx, sourceID, bySource[sourceID])
			mu.Lock()
			results[sourceID] = result
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return domain.AuditReport{}, err
	}

	report := r.mergeResults(sourceIDs, results, enabled)
	if r.metrics != nil {
		r.metrics.AuditRunDuration.Observe(r.now().Sub(started).Seconds())
	}

	if err := r.store.SaveReport(ctx, report); err != nil {
		return report, fmt.Errorf("save audit report: %w", err)
	}

	// Operational failures propagate as errors alongside the saved report:
	// an outage mid-run is not an audit finding.
	var opErrs []error
	for _, sourceID := range sourceIDs {
		if result := results[sourceID]; result != nil && result.opErr != nil {
			opErrs = append(opErrs, fmt.Errorf("source %s: %w", sourceID, result.opErr))
		}
	}
	if len(opErrs) > 0 {
		return report, errors.Join(opErrs...)
	}
	return report, nil
}

func groupBySource(docs []domain.RawDocument) map[string][]domain.RawDocument {
	bySource := make(map[string][]domain.RawDocument)
	for _, doc := range docs {
		bySource[doc.SourceID] = append(bySource[doc.SourceID], doc)
	}
	return bySource
}

// auditSource processes one source's documents in order. Chain integrity is
// checked before any append: a broken chain halts that source and is
// surfaced, never repaired silently. Documents whose deterministic ref is
// already chained were audited by an earlier run and are skipped, so one raw
// document yields exactly one snapshot and one record across invocations.
func (r *Runner) auditSource(ctx context.Context, sourceID string, docs []domain.RawDocument) *sourceResult {
	result := &sourceResult{sourceID: sourceID}
	log := r.logger.With("source_id", sourceID)

	chain, err := ledger.New(r.store)
	if err != nil {
		result.opErr = err
		return result
	}

	records, err := r.store.Records(ctx, sourceID)
	if err != nil {
		result.opErr = fmt.Errorf("read chain: %w", err)
		return result
	}
	if verification := ledger.VerifyRecords(records); !verification.Valid {
		if r.metrics != nil {
			r.metrics.ChainVerifyFailures.Inc()
		}
		intErr := &domain.ChainIntegrityError{
			SourceID: sourceID,
			AtIndex:  verification.FirstBreakIndex,
			Err:      domain.ErrBrokenLink,
		}
		log.Error("chain verification failed, halting appends",
			"first_break_index", verification.FirstBreakIndex)
		result.chainFailure = intErr.Error()
		return result
	}

	chained := make(map[string]bool, len(records))
	for _, record := range records {
		chained[record.SnapshotRef] = true
	}
	if len(records) > 0 {
		last := records[len(records)-1]
		result.tip = &domain.ChainTip{
			SourceID:      sourceID,
			SequenceIndex: last.SequenceIndex,
			ContentHash:   last.ContentHash,
			ChainHash:     last.ChainHash,
		}
	}

	history, err := r.store.SnapshotsBySource(ctx, sourceID)
	if err != nil {
		result.opErr = fmt.Errorf("load snapshot history: %w", err)
		return result
	}

	for _, doc := range docs {
		if chained[r.normalizer.Ref(doc)] {
			log.Debug("document already audited, skipping", "retrieved_at", doc.RetrievedAt)
			continue
		}

		snapshot, err := r.normalizer.Normalize(doc)
		if err != nil {
			if r.metrics != nil {
				r.metrics.NormalizationFailures.Inc()
			}
			log.Warn("normalization failed, skipping document", "error", err)
			result.failures = append(result.failures, domain.NormalizationFailure{
				SourceID: sourceID,
				Reason:   err.Error(),
			})
			continue
		}

		if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
			// A store that cannot persist snapshots cannot chain them
			// either; the source halts on the same operational path.
			result.opErr = fmt.Errorf("persist snapshot %s: %w", snapshot.Ref, err)
			return result
		}

		record, err := chain.Append(ctx, snapshot, r.now())
		if err != nil {
			// An append failure leaves the chain without this snapshot;
			// continuing would fork history, so the source halts here.
			result.opErr = err
			return result
		}
		if r.metrics != nil {
			r.metrics.ChainAppends.Inc()
			r.metrics.SnapshotsNormalized.Inc()
		}

		var previous *domain.Snapshot
		if len(history) > 0 {
			previous = &history[len(history)-1]
		}
		alerts, diagnostics := r.evaluate(snapshot, previous, history)
		result.alerts = append(result.alerts, alerts...)
		result.diagnostics = append(result.diagnostics, diagnostics...)

		history = append(history, snapshot)
		result.snapshots++
		if result.earliest.IsZero() || snapshot.TimestampObserved.Before(result.earliest) {
			result.earliest = snapshot.TimestampObserved
		}
		if snapshot.TimestampObserved.After(result.latest) {
			result.latest = snapshot.TimestampObserved
		}
		result.tip = &domain.ChainTip{
			SourceID:      sourceID,
			SequenceIndex: record.SequenceIndex,
			ContentHash:   record.ContentHash,
			ChainHash:     record.ChainHash,
		}
	}
	return result
}

// evaluate runs every enabled rule over one snapshot pair in registry order.
// A failure inside one rule becomes a diagnostic and the remaining rules
// still run.
func (r *Runner) evaluate(current domain.Snapshot, previous *domain.Snapshot, history []domain.Snapshot) ([]domain.Alert, []domain.RuleDiagnostic) {
	in := rules.Input{
		Current:  current,
		Previous: previous,
		History:  history,
		Config:   r.cfg,
	}

	var alerts []domain.Alert
	var diagnostics []domain.RuleDiagnostic
	for _, rule := range r.registry {
		if !rule.Enabled(r.cfg) {
			continue
		}
		ruleAlerts, diag := r.applyRule(rule, in)
		if diag != nil {
			if r.metrics != nil {
				r.metrics.RuleExecutionErrors.WithLabelValues(rule.ID()).Inc()
			}
			r.logger.Error("rule execution failed",
				"rule_id", rule.ID(), "snapshot_ref", current.Ref, "detail", diag.Detail)
			diagnostics = append(diagnostics, *diag)
			continue
		}
		for _, alert := range ruleAlerts {
			if r.metrics != nil {
				r.metrics.ObserveAlert(alert.Severity)
			}
		}
		alerts = append(alerts, ruleAlerts...)
	}
	return alerts, diagnostics
}

// applyRule is the error boundary around a single rule invocation. Rules are
// contractually pure, but a misbehaving one must never abort the batch.
func (r *Runner) applyRule(rule rules.Rule, in rules.Input) (alerts []domain.Alert, diag *domain.RuleDiagnostic) {
	defer func() {
		if rec := recover(); rec != nil {
			alerts = nil
			diag = &domain.RuleDiagnostic{
				RuleID:      rule.ID(),
				SnapshotRef: in.Current.Ref,
				Detail:      fmt.Sprintf("panic: %v", rec),
			}
		}
	}()
	return rule.Apply(in), nil
}

// mergeResults assembles the final report in source order, deduplicating
// alerts while preserving first occurrence.
func (r *Runner) mergeResults(sourceIDs []string, results map[string]*sourceResult, enabled []string) domain.AuditReport {
	report := domain.AuditReport{
		RunID:          uuid.New().String(),
		CreatedAt:      r.now().UTC(),
		ConfigHash:     r.cfg.Hash(),
		RuleIDs:        enabled,
		SeverityCounts: map[domain.Severity]int{},
		ChainTips:      []domain.ChainTip{},
		Alerts:         []domain.Alert{},
	}

	seen := make(map[string]bool)
	for _, sourceID := range sourceIDs {
		result := results[sourceID]
		if result == nil {
			continue
		}
		for _, alert := range result.alerts {
			key := alert.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			report.Alerts = append(report.Alerts, alert)
			report.SeverityCounts[alert.Severity]++
		}
		report.NormalizationFailures = append(report.NormalizationFailures, result.failures...)
		report.Diagnostics = append(report.Diagnostics, result.diagnostics...)
		if result.chainFailure != "" {
			report.ChainFailures = append(report.ChainFailures, result.chainFailure)
		}
		if result.tip != nil {
			report.ChainTips = append(report.ChainTips, *result.tip)
		}
		report.SnapshotCount += result.snapshots
		if !result.earliest.IsZero() &&
			(report.TimeRange.From.IsZero() || result.earliest.Before(report.TimeRange.From)) {
			report.TimeRange.From = result.earliest
		}
		if result.latest.After(report.TimeRange.To) {
			report.TimeRange.To = result.latest
		}
	}
	return report
}
