// Package metrics exposes Prometheus instrumentation for the sync layer. It
// observes workflows through types.Hooks and never sits on the write path.
package metrics

import (
	"context"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "profilesync"

// Outcome labels for per-collection sync counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the sync layer collectors.
type Metrics struct {
	SyncedRecordsTotal      *prometheus.CounterVec
	SyncCollectionsTotal    *prometheus.CounterVec
	SyncRecordFailuresTotal *prometheus.CounterVec
	SyncDuration            prometheus.Histogram
	AuditMismatchesTotal    *prometheus.CounterVec
	AuditsTotal             *prometheus.CounterVec
	SnapshotReadsTotal      *prometheus.CounterVec
	SnapshotReadDuration    *prometheus.HistogramVec
	AdminActionsTotal       *prometheus.CounterVec
	ProfileChangesTotal     *prometheus.CounterVec
}

// New registers every collector on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		SyncedRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synced_records_total",
				Help:      "Denormalized records rewritten by fan-out",
			},
			[]string{"collection"},
		),
		SyncCollectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_collections_total",
				Help:      "Per-collection fan-out outcomes",
			},
			[]string{"collection", "outcome"},
		),
		SyncRecordFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_record_failures_total",
				Help:      "Records that failed the per-record fallback write",
			},
			[]string{"collection"},
		),
		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Fan-out job duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		AuditMismatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_mismatches_total",
				Help:      "Stale denormalized copies found by the auditor",
			},
			[]string{"collection"},
		),
		AuditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audits_total",
				Help:      "Consistency audits by result",
			},
			[]string{"result"},
		),
		SnapshotReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_reads_total",
				Help:      "Snapshot reads served from cache (hit) or the store (miss)",
			},
			[]string{"result"},
		),
		SnapshotReadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_read_duration_seconds",
				Help:      "Snapshot read latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"result"},
		),
		AdminActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_actions_total",
				Help:      "Administrative writes by action",
			},
			[]string{"action"},
		),
		ProfileChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_changes_total",
				Help:      "Canonical profile field changes",
			},
			[]string{"field"},
		),
	}
}

// Hooks returns callbacks that record workflow events.
func (m *Metrics) Hooks() types.Hooks {
	return types.Hooks{
		AfterProfileChange: m.observeProfile,
		AfterSync:          m.observeSync,
		AfterAudit:         m.observeAudit,
		AfterAdminAction:   m.observeAdmin,
		AfterSnapshotRead:  m.observeSnapshot,
	}
}

func (m *Metrics) observeProfile(_ context.Context, event types.ProfileEvent) {
	for field := range event.Changes {
		m.ProfileChangesTotal.WithLabelValues(string(field)).Inc()
	}
}

func (m *Metrics) observeSync(_ context.Context, event types.SyncEvent) {
	for _, outcome := range event.Result.Collections {
		label := OutcomeSuccess
		switch {
		case outcome.Skipped:
			label = OutcomeSkipped
		case !outcome.Success:
			label = OutcomeFailed
		}
		m.SyncCollectionsTotal.WithLabelValues(outcome.Collection, label).Inc()
		if outcome.Updated > 0 {
			m.SyncedRecordsTotal.WithLabelValues(outcome.Collection).Add(float64(outcome.Updated))
		}
		if outcome.Failed > 0 {
			m.SyncRecordFailuresTotal.WithLabelValues(outcome.Collection).Add(float64(outcome.Failed))
		}
	}
	m.SyncDuration.Observe(event.Duration.Seconds())
}

func (m *Metrics) observeAudit(_ context.Context, event types.AuditEvent) {
	result := "consistent"
	if !event.Report.Consistent() {
		result = "drift"
	}
	m.AuditsTotal.WithLabelValues(result).Inc()
	for _, coll := range event.Report.Collections {
		if coll.MismatchCount > 0 {
			m.AuditMismatchesTotal.WithLabelValues(coll.Collection).Add(float64(coll.MismatchCount))
		}
	}
}

func (m *Metrics) observeAdmin(_ context.Context, event types.AdminEvent) {
	m.AdminActionsTotal.WithLabelValues(event.Action).Inc()
}

func (m *Metrics) observeSnapshot(_ context.Context, event types.SnapshotEvent) {
	result := "miss"
	if event.Hit {
		result = "hit"
	}
	m.SnapshotReadsTotal.WithLabelValues(result).Inc()
	m.SnapshotReadDuration.WithLabelValues(result).Observe(event.Duration.Seconds())
}
