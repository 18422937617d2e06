package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/audit"
	"github.com/goliatone/go-profilesync/fanout"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// RepairResult pairs the audit that drove a repair with the fan-out it ran.
type RepairResult struct {
	Report types.AuditReport
	// Sync is nil when the audit found nothing to repair.
	Sync *types.SyncResult
}

// ProfileRepairInput requests an audit followed by a targeted sync.
type ProfileRepairInput struct {
	UserID uuid.UUID
	Actor  types.ActorRef
	Result *RepairResult
}

// Type implements gocommand.Message.
func (ProfileRepairInput) Type() string {
	return "command.profile.repair"
}

// Validate implements gocommand.Message.
func (input ProfileRepairInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	return nil
}

// ProfileRepairCommand re-syncs only the canonical fields that drifted.
type ProfileRepairCommand struct {
	repo    types.ProfileRepository
	sync    Syncer
	auditor Auditor
	logger  types.Logger
}

// NewProfileRepairCommand constructs the repair handler.
func NewProfileRepairCommand(cfg SyncCommandConfig) *ProfileRepairCommand {
	return &ProfileRepairCommand{
		repo:    cfg.Repository,
		sync:    cfg.Sync,
		auditor: cfg.Auditor,
		logger:  safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[ProfileRepairInput] = (*ProfileRepairCommand)(nil)

// Execute implements gocommand.Commander.
func (c *ProfileRepairCommand) Execute(ctx context.Context, input ProfileRepairInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if c.auditor == nil {
		return types.ErrMissingAuditor
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

	report, err := c.auditor.AuditProfile(ctx, *profile)
	if err != nil {
		return err
	}
	result := RepairResult{Report: report}
	changes := audit.RepairChanges(report, *profile)
	if len(changes) > 0 {
		synced, err := c.sync.Sync(ctx, input.UserID, changes,
			fanout.WithActor(input.Actor.ID),
			fanout.WithJournalKind(types.JournalKindRepair),
		)
		if err != nil {
			return err
		}
		result.Sync = &synced
		c.logger.Info("profile repaired",
			"user_id", input.UserID.String(),
			"mismatches", report.TotalMismatches(),
			"updated", synced.TotalUpdated,
		)
	}
	if input.Result != nil {
		*input.Result = result
	}
	return nil
}
