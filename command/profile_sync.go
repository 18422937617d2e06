package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/fanout"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// SyncCommandConfig wires the manual sync and repair commands.
type SyncCommandConfig struct {
	Repository types.ProfileRepository
	Sync       Syncer
	Auditor    Auditor
	Logger     types.Logger
}

// ProfileSyncInput requests a full re-propagation of the canonical profile.
type ProfileSyncInput struct {
	UserID uuid.UUID
	Actor  types.ActorRef
	Result *types.SyncResult
}

// Type implements gocommand.Message.
func (ProfileSyncInput) Type() string {
	return "command.profile.sync"
}

// Validate implements gocommand.Message.
func (input ProfileSyncInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	return nil
}

// ProfileSyncCommand pushes every canonical field to every copy.
type ProfileSyncCommand struct {
	repo   types.ProfileRepository
	sync   Syncer
	logger types.Logger
}

// NewProfileSyncCommand constructs the manual sync handler.
func NewProfileSyncCommand(cfg SyncCommandConfig) *ProfileSyncCommand {
	return &ProfileSyncCommand{
		repo:   cfg.Repository,
		sync:   cfg.Sync,
		logger: safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[ProfileSyncInput] = (*ProfileSyncCommand)(nil)

// Execute implements gocommand.Commander.
func (c *ProfileSyncCommand) Execute(ctx context.Context, input ProfileSyncInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if c.sync == nil {
		return types.ErrMissingSyncEngine
	}
	profile, err := c.repo.GetProfile(ctx, input.UserID)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrProfileNotFound
	}
	result, err := c.sync.Sync(ctx, input.UserID, profile.Canonical(), fanout.WithActor(input.Actor.ID))
	if err != nil {
		return err
	}
	if input.Result != nil {
		*input.Result = result
	}
	return nil
}
