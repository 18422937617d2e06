package command

import (
	"context"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-profilesync/fanout"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Syncer fans canonical field changes out to dependent collections.
type Syncer interface {
	Sync(ctx context.Context, userID uuid.UUID, changes map[types.CanonicalField]string, opts ...fanout.Option) (types.SyncResult, error)
}

// Auditor compares denormalized copies against the canonical profile.
type Auditor interface {
	AuditProfile(ctx context.Context, profile types.UserProfile) (types.AuditReport, error)
}

// Invalidator drops cached snapshots after writes.
type Invalidator interface {
	Invalidate()
}

func safeClock(clock types.Clock) types.Clock {
	if clock != nil {
		return clock
	}
	return types.SystemClock{}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}

func safeHooks(hooks types.Hooks) types.Hooks {
	return hooks
}

func now(clock types.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now()
}

func invalidate(cache Invalidator) {
	if cache != nil {
		cache.Invalidate()
	}
}

func emitProfileHook(ctx context.Context, hooks types.Hooks, event types.ProfileEvent) {
	if hooks.AfterProfileChange == nil {
		return
	}
	hooks.AfterProfileChange(ctx, event)
}

func emitAdminHook(ctx context.Context, hooks types.Hooks, event types.AdminEvent) {
	if hooks.AfterAdminAction == nil {
		return
	}
	hooks.AfterAdminAction(ctx, event)
}

// requireAdmin loads the actor's profile and checks the admin role.
func requireAdmin(ctx context.Context, profiles types.ProfileRepository, actor types.ActorRef) error {
	if actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	if profiles == nil {
		return types.ErrMissingProfileRepository
	}
	profile, err := profiles.GetProfile(ctx, actor.ID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

func changedFields(before *types.UserProfile, after types.UserProfile) map[types.CanonicalField]string {
	next := after.Canonical()
	if before == nil {
		out := make(map[types.CanonicalField]string, len(next))
		for field, value := range next {
			if value != "" {
				out[field] = value
			}
		}
		return out
	}
	prev := before.Canonical()
	out := make(map[types.CanonicalField]string)
	for field, value := range next {
		if prev[field] != value {
			out[field] = value
		}
	}
	return out
}

// fanOut propagates changes unless the feature gate disables it. It runs
// after the profile is persisted, so neither a gate error nor a sync failure
// fails the save; both mark the result incomplete.
func fanOut(ctx context.Context, gate featuregate.FeatureGate, syncer Syncer, logger types.Logger, userID uuid.UUID, actor types.ActorRef, changes map[types.CanonicalField]string, result *ProfileSaveResult) {
	if len(changes) == 0 || syncer == nil {
		return
	}
	enabled, err := featureEnabled(ctx, gate, featureProfileFanout, userID)
	if err != nil {
		logger.Error("profile fan-out gate check failed", err, "user_id", userID.String())
		result.SyncIncomplete = true
		result.Warning = SyncIncompleteWarning
		return
	}
	if !enabled {
		logger.Debug("profile fan-out disabled", "user_id", userID.String())
		return
	}
	syncResult, err := syncer.Sync(ctx, userID, changes, fanout.WithActor(actor.ID))
	if err != nil {
		logger.Error("profile fan-out failed", err, "user_id", userID.String())
		result.SyncIncomplete = true
		result.Warning = SyncIncompleteWarning
		return
	}
	result.Sync = &syncResult
	if !syncResult.Complete() {
		result.SyncIncomplete = true
		result.Warning = SyncIncompleteWarning
	}
}
