package audit

import (
	"context"
	"fmt"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Config wires the consistency auditor.
type Config struct {
	Store       types.DocumentStore
	Profiles    types.ProfileRepository
	Collections []types.CollectionSpec
	Hooks       types.Hooks
	Clock       types.Clock
	Logger      types.Logger
}

// Auditor compares denormalized copies against the canonical profile. It
// never writes.
type Auditor struct {
	store       types.DocumentStore
	profiles    types.ProfileRepository
	collections []types.CollectionSpec
	hooks       types.Hooks
	clock       types.Clock
	logger      types.Logger
}

// NewAuditor constructs an auditor over the collection table. An empty table
// falls back to types.DefaultCollections.
func NewAuditor(cfg Config) (*Auditor, error) {
	if cfg.Store == nil {
		return nil, types.ErrMissingDocumentStore
	}
	if cfg.Profiles == nil {
		return nil, types.ErrMissingProfileRepository
	}
	collections := cfg.Collections
	if len(collections) == 0 {
		collections = types.DefaultCollections()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Auditor{
		store:       cfg.Store,
		profiles:    cfg.Profiles,
		collections: append([]types.CollectionSpec(nil), collections...),
		hooks:       cfg.Hooks,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Audit loads the canonical profile and reports every stale copy.
func (a *Auditor) Audit(ctx context.Context, userID uuid.UUID) (types.AuditReport, error) {
	if userID == uuid.Nil {
		return types.AuditReport{}, types.InvalidArgument("audit: user id required")
	}
	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		return types.AuditReport{}, err
	}
	if profile == nil {
		return types.AuditReport{}, types.NotFound(fmt.Sprintf("audit: profile %s not found", userID))
	}
	return a.AuditProfile(ctx, *profile)
}

// AuditProfile audits against an already loaded profile.
func (a *Auditor) AuditProfile(ctx context.Context, profile types.UserProfile) (types.AuditReport, error) {
	if profile.UserID == uuid.Nil {
		return types.AuditReport{}, types.InvalidArgument("audit: user id required")
	}
	canonical := profile.Canonical()
	report := types.AuditReport{
		UserID:      profile.UserID.String(),
		Collections: make([]types.CollectionAudit, 0, len(a.collections)),
	}
	for _, spec := range a.collections {
		report.Collections = append(report.Collections, a.auditCollection(ctx, spec, profile.UserID, canonical))
	}

	a.logger.Debug("consistency audit completed",
		"user_id", report.UserID,
		"mismatches", report.TotalMismatches(),
	)
	if a.hooks.AfterAudit != nil {
		a.hooks.AfterAudit(ctx, types.AuditEvent{
			UserID:     profile.UserID,
			Report:     report,
			OccurredAt: a.clock.Now(),
		})
	}
	return report, nil
}

func (a *Auditor) auditCollection(ctx context.Context, spec types.CollectionSpec, userID uuid.UUID, canonical map[types.CanonicalField]string) types.CollectionAudit {
	result := types.CollectionAudit{Collection: spec.Key(), Mismatches: []types.Mismatch{}}
	docs, err := a.store.Query(ctx, spec.Collection, types.Where(spec.OwnerField, userID.String()))
	if err != nil {
		if spec.Optional && types.IsAccessDenied(err) {
			result.Skipped = true
			return result
		}
		a.logger.Error("consistency audit query failed", err, "collection", spec.Key())
		result.Error = err.Error()
		return result
	}
	for _, doc := range docs {
		for _, field := range types.CanonicalFields() {
			stored, ok := spec.Fields[field]
			if !ok || stored == "" {
				continue
			}
			current := types.AsString(doc.Fields[stored])
			expected := canonical[field]
			if current == expected {
				continue
			}
			result.Mismatches = append(result.Mismatches, types.Mismatch{
				RecordID:       doc.ID,
				Field:          stored,
				CanonicalField: field,
				Current:        current,
				Expected:       expected,
			})
		}
	}
	result.MismatchCount = len(result.Mismatches)
	return result
}

// RepairChanges returns the canonical values for every drifted field.
func RepairChanges(report types.AuditReport, profile types.UserProfile) map[types.CanonicalField]string {
	canonical := profile.Canonical()
	out := make(map[types.CanonicalField]string)
	for _, field := range report.Drift() {
		out[field] = canonical[field]
	}
	return out
}
