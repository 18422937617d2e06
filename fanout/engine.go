package fanout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-profilesync/journal"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

const (
	// SkipReasonNoMappedFields marks collections that store none of the changed fields.
	SkipReasonNoMappedFields = "no mapped fields"
	// SkipReasonAccessDenied marks optional collections the store refused to write.
	SkipReasonAccessDenied = "access denied"
)

// Invalidator is implemented by snapshot caches that must be dropped after a
// fan-out.
type Invalidator interface {
	Invalidate()
}

// Config wires the fan-out engine.
type Config struct {
	Store       types.DocumentStore
	Collections []types.CollectionSpec
	Cache       Invalidator
	Journal     types.JournalSink
	Retries     types.RetryQueue
	Masker      *masker.Masker
	Hooks       types.Hooks
	Clock       types.Clock
	IDGen       types.IDGenerator
	Logger      types.Logger
}

// Engine propagates canonical profile fields to every dependent collection.
type Engine struct {
	store       types.DocumentStore
	collections []types.CollectionSpec
	cache       Invalidator
	journal     types.JournalSink
	retries     types.RetryQueue
	mask        *masker.Masker
	hooks       types.Hooks
	clock       types.Clock
	idGen       types.IDGenerator
	logger      types.Logger
}

// NewEngine validates the collection table and constructs the engine. An
// empty table falls back to types.DefaultCollections.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, types.ErrMissingDocumentStore
	}
	collections := cfg.Collections
	if len(collections) == 0 {
		collections = types.DefaultCollections()
	}
	if err := ValidateCollections(collections); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Engine{
		store:       cfg.Store,
		collections: append([]types.CollectionSpec(nil), collections...),
		cache:       cfg.Cache,
		journal:     cfg.Journal,
		retries:     cfg.Retries,
		mask:        cfg.Masker,
		hooks:       cfg.Hooks,
		clock:       clock,
		idGen:       idGen,
		logger:      logger,
	}, nil
}

// Collections returns a copy of the configured collection table.
func (e *Engine) Collections() []types.CollectionSpec {
	return append([]types.CollectionSpec(nil), e.collections...)
}

// ValidateCollections rejects tables with duplicate keys or incomplete specs.
func ValidateCollections(specs []types.CollectionSpec) error {
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.Collection) == "" {
			return types.InvalidArgument(fmt.Sprintf("fanout: collection spec %d missing collection", i))
		}
		if strings.TrimSpace(spec.OwnerField) == "" {
			return types.InvalidArgument(fmt.Sprintf("fanout: collection %s missing owner field", spec.Key()))
		}
		if len(spec.Fields) == 0 {
			return types.InvalidArgument(fmt.Sprintf("fanout: collection %s maps no fields", spec.Key()))
		}
		for field := range spec.Fields {
			if !field.Valid() {
				return types.InvalidArgument(fmt.Sprintf("fanout: collection %s maps unknown field %q", spec.Key(), field))
			}
		}
		if seen[spec.Key()] {
			return types.InvalidArgument("fanout: duplicate collection key " + spec.Key())
		}
		seen[spec.Key()] = true
	}
	return nil
}

// ValidateChanges checks a fan-out request.
func ValidateChanges(userID uuid.UUID, changes map[types.CanonicalField]string) error {
	if userID == uuid.Nil {
		return types.InvalidArgument("fanout: user id required")
	}
	if len(changes) == 0 {
		return types.InvalidArgument("fanout: no fields to sync")
	}
	for field := range changes {
		if !field.Valid() {
			return types.InvalidArgument(fmt.Sprintf("fanout: unknown field %q", field))
		}
	}
	return nil
}

// Sync fans the changed fields out to every configured collection. Partial
// failures are reported in the result; only invalid input returns an error.
func (e *Engine) Sync(ctx context.Context, userID uuid.UUID, changes map[types.CanonicalField]string, opts ...Option) (types.SyncResult, error) {
	if err := ValidateChanges(userID, changes); err != nil {
		return types.SyncResult{}, err
	}
	options := applyOptions(opts)
	started := e.clock.Now()

	result := types.SyncResult{Collections: make([]types.CollectionOutcome, 0, len(e.collections))}
	for _, spec := range e.collections {
		outcome, err := e.syncCollection(ctx, spec, userID, changes, started)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", spec.Key(), err))
		}
		result.TotalUpdated += outcome.Updated
		result.Collections = append(result.Collections, outcome)
	}

	if e.cache != nil {
		e.cache.Invalidate()
	}
	e.finish(ctx, userID, changes, result, started, options)
	return result, nil
}

// SyncDisplayName fans out a display name change.
func (e *Engine) SyncDisplayName(ctx context.Context, userID uuid.UUID, displayName string, opts ...Option) (types.SyncResult, error) {
	return e.Sync(ctx, userID, map[types.CanonicalField]string{types.FieldDisplayName: displayName}, opts...)
}

// SyncAvatar fans out an avatar reference change.
func (e *Engine) SyncAvatar(ctx context.Context, userID uuid.UUID, avatarRef string, opts ...Option) (types.SyncResult, error) {
	return e.Sync(ctx, userID, map[types.CanonicalField]string{types.FieldAvatarRef: avatarRef}, opts...)
}

// SyncProfile re-propagates every canonical field of the profile.
func (e *Engine) SyncProfile(ctx context.Context, profile types.UserProfile, opts ...Option) (types.SyncResult, error) {
	return e.Sync(ctx, profile.UserID, profile.Canonical(), opts...)
}

// SyncCollection replays the fan-out for a single collection key. It does not
// journal or enqueue retries.
func (e *Engine) SyncCollection(ctx context.Context, userID uuid.UUID, key string, changes map[types.CanonicalField]string) (types.CollectionOutcome, error) {
	if err := ValidateChanges(userID, changes); err != nil {
		return types.CollectionOutcome{}, err
	}
	for _, spec := range e.collections {
		if spec.Key() != key {
			continue
		}
		outcome, err := e.syncCollection(ctx, spec, userID, changes, e.clock.Now())
		if e.cache != nil {
			e.cache.Invalidate()
		}
		return outcome, err
	}
	return types.CollectionOutcome{}, types.InvalidArgument("fanout: unknown collection " + key)
}

func (e *Engine) syncCollection(ctx context.Context, spec types.CollectionSpec, userID uuid.UUID, changes map[types.CanonicalField]string, stamp time.Time) (types.CollectionOutcome, error) {
	outcome := types.CollectionOutcome{Collection: spec.Key()}
	payload := spec.Mapped(changes)
	if len(payload) == 0 {
		outcome.Success = true
		outcome.Skipped = true
		outcome.SkipReason = SkipReasonNoMappedFields
		return outcome, nil
	}
	if field := spec.StampField(); field != "" {
		payload[field] = stamp
	}

	docs, err := e.store.Query(ctx, spec.Collection, types.Where(spec.OwnerField, userID.String()))
	if err != nil {
		return e.fail(spec, outcome, err)
	}
	if len(docs) == 0 {
		outcome.Success = true
		return outcome, nil
	}

	updates := make([]types.Update, 0, len(docs))
	for _, doc := range docs {
		updates = append(updates, types.Update{ID: doc.ID, Fields: types.CloneFields(payload)})
	}
	err = e.store.BulkWrite(ctx, spec.Collection, updates)
	if err == nil {
		outcome.Updated = len(docs)
		outcome.Success = true
		return outcome, nil
	}
	if types.IsAccessDenied(err) {
		return e.fail(spec, outcome, err)
	}

	e.logger.Error("fanout bulk write failed, writing records individually", err,
		"collection", spec.Key(), "records", len(docs))
	for _, doc := range docs {
		if werr := e.store.Write(ctx, spec.Collection, doc.ID, types.CloneFields(payload)); werr != nil {
			outcome.Failed++
			e.logger.Error("fanout record write failed", werr,
				"collection", spec.Key(), "record_id", doc.ID)
			continue
		}
		outcome.Updated++
	}
	outcome.Success = true
	return outcome, nil
}

func (e *Engine) fail(spec types.CollectionSpec, outcome types.CollectionOutcome, err error) (types.CollectionOutcome, error) {
	if spec.Optional && types.IsAccessDenied(err) {
		outcome.Success = true
		outcome.Skipped = true
		outcome.SkipReason = SkipReasonAccessDenied
		e.logger.Debug("fanout skipped optional collection", "collection", spec.Key(), "reason", err.Error())
		return outcome, nil
	}
	outcome.Success = false
	outcome.Error = err.Error()
	e.logger.Error("fanout collection failed", err, "collection", spec.Key(), "optional", spec.Optional)
	return outcome, err
}

func (e *Engine) finish(ctx context.Context, userID uuid.UUID, changes map[types.CanonicalField]string, result types.SyncResult, started time.Time, options syncOptions) {
	finished := e.clock.Now()
	masked := journal.SanitizeFields(e.mask, journal.ChangeFields(changes))

	e.logger.Info("profile fan-out completed",
		"user_id", userID.String(),
		"updated", result.TotalUpdated,
		"complete", result.Complete(),
		"failed_collections", result.FailedCollections(),
		"changes", masked,
	)

	if e.journal != nil {
		entry := types.JournalEntry{
			ID:         e.idGen.UUID(),
			UserID:     userID,
			ActorID:    options.actorID,
			Kind:       options.kind,
			Updated:    result.TotalUpdated,
			Failed:     failedCount(result),
			Complete:   result.Complete(),
			Data:       journalData(masked, result),
			OccurredAt: finished,
		}
		if err := e.journal.Record(ctx, entry); err != nil {
			e.logger.Error("fanout journal write failed", err, "user_id", userID.String())
		}
	}

	if e.retries != nil && options.enqueueRetries {
		for _, outcome := range result.Collections {
			if outcome.Success && outcome.Failed == 0 {
				continue
			}
			lastErr := outcome.Error
			if lastErr == "" {
				lastErr = "record writes failed"
			}
			item := types.RetryItem{
				ID:         e.idGen.UUID(),
				UserID:     userID,
				Collection: outcome.Collection,
				Changes:    cloneChanges(changes),
				Status:     types.RetryStatusPending,
				LastError:  lastErr,
				CreatedAt:  finished,
				UpdatedAt:  finished,
			}
			if err := e.retries.Enqueue(ctx, item); err != nil {
				e.logger.Error("fanout retry enqueue failed", err, "collection", outcome.Collection)
			}
		}
	}

	if e.hooks.AfterSync != nil {
		e.hooks.AfterSync(ctx, types.SyncEvent{
			UserID:     userID,
			Changes:    cloneChanges(changes),
			Result:     result,
			Duration:   finished.Sub(started),
			OccurredAt: finished,
		})
	}
}

func failedCount(result types.SyncResult) int {
	failed := 0
	for _, outcome := range result.Collections {
		if !outcome.Success {
			failed++
		}
		failed += outcome.Failed
	}
	return failed
}

func journalData(changes map[string]any, result types.SyncResult) map[string]any {
	collections := make([]any, 0, len(result.Collections))
	for _, outcome := range result.Collections {
		collections = append(collections, map[string]any{
			"collection":  outcome.Collection,
			"updated":     outcome.Updated,
			"failed":      outcome.Failed,
			"success":     outcome.Success,
			"skipped":     outcome.Skipped,
			"skip_reason": outcome.SkipReason,
			"error":       outcome.Error,
		})
	}
	data := map[string]any{
		"changes":     changes,
		"collections": collections,
	}
	if len(result.Errors) > 0 {
		errs := make([]any, 0, len(result.Errors))
		for _, msg := range result.Errors {
			errs = append(errs, msg)
		}
		data["errors"] = errs
	}
	return data
}

func cloneChanges(changes map[types.CanonicalField]string) map[types.CanonicalField]string {
	out := make(map[types.CanonicalField]string, len(changes))
	for k, v := range changes {
		out[k] = v
	}
	return out
}
