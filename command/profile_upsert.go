package command

import (
	"context"
	"strings"
	"unicode/utf8"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// ProfileCommandConfig wires dependencies for profile commands.
type ProfileCommandConfig struct {
	Repository  types.ProfileRepository
	Sync        Syncer
	FeatureGate featuregate.FeatureGate
	Hooks       types.Hooks
	Clock       types.Clock
	Logger      types.Logger
}

// ProfileSaveResult reports the saved profile and how its fan-out went.
type ProfileSaveResult struct {
	Profile types.UserProfile
	// Sync is nil when no canonical field changed or fan-out is disabled.
	Sync           *types.SyncResult
	SyncIncomplete bool
	Warning        string
}

// ProfileUpsertInput captures a profile patch request.
type ProfileUpsertInput struct {
	UserID uuid.UUID
	Patch  types.ProfilePatch
	Actor  types.ActorRef
	Result *ProfileSaveResult
}

// Type implements gocommand.Message.
func (ProfileUpsertInput) Type() string {
	return "command.profile.upsert"
}

// Validate implements gocommand.Message.
func (input ProfileUpsertInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return validatePatch(input.Patch)
}

// ProfileUpsertCommand saves the canonical profile and fans changed fields
// out to their denormalized copies.
type ProfileUpsertCommand struct {
	repo   types.ProfileRepository
	sync   Syncer
	gate   featuregate.FeatureGate
	hooks  types.Hooks
	clock  types.Clock
	logger types.Logger
}

// NewProfileUpsertCommand constructs the profile command handler.
func NewProfileUpsertCommand(cfg ProfileCommandConfig) *ProfileUpsertCommand {
	return &ProfileUpsertCommand{
		repo:   cfg.Repository,
		sync:   cfg.Sync,
		gate:   cfg.FeatureGate,
		hooks:  safeHooks(cfg.Hooks),
		clock:  safeClock(cfg.Clock),
		logger: safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[ProfileUpsertInput] = (*ProfileUpsertCommand)(nil)

// Execute applies the patch, creating the profile when necessary. The save
// succeeds even when fan-out is partial; the result carries the warning.
func (c *ProfileUpsertCommand) Execute(ctx context.Context, input ProfileUpsertInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.repo == nil {
		return types.ErrMissingProfileRepository
	}

	existing, err := c.repo.GetProfile(ctx, input.UserID)
	if err != nil {
		return err
	}
	profile := types.UserProfile{UserID: input.UserID, Role: types.RoleUser, CreatedAt: now(c.clock)}
	if existing != nil {
		profile = *existing
	}
	applyProfilePatch(&profile, input.Patch)

	saved, err := c.repo.UpsertProfile(ctx, profile)
	if err != nil {
		return err
	}
	if saved != nil {
		profile = *saved
	}

	changes := changedFields(existing, profile)
	result := ProfileSaveResult{Profile: profile}
	fanOut(ctx, c.gate, c.sync, c.logger, input.UserID, input.Actor, changes, &result)
	if input.Result != nil {
		*input.Result = result
	}

	emitProfileHook(ctx, c.hooks, types.ProfileEvent{
		UserID:     input.UserID,
		ActorID:    input.Actor.ID,
		OccurredAt: now(c.clock),
		Profile:    profile,
		Changes:    changes,
	})
	return nil
}

func validatePatch(patch types.ProfilePatch) error {
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return ErrDisplayNameRequired
		}
		if utf8.RuneCountInString(name) > MaxDisplayNameLength {
			return ErrDisplayNameTooLong
		}
	}
	if patch.Bio != nil && utf8.RuneCountInString(*patch.Bio) > MaxBioLength {
		return ErrBioTooLong
	}
	return nil
}

func applyProfilePatch(profile *types.UserProfile, patch types.ProfilePatch) {
	if profile == nil {
		return
	}
	if patch.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.AvatarRef != nil {
		profile.AvatarRef = strings.TrimSpace(*patch.AvatarRef)
	}
	if patch.Bio != nil {
		profile.Bio = *patch.Bio
	}
	if patch.Gender != nil {
		profile.Gender = strings.TrimSpace(*patch.Gender)
	}
}
