package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Admin action names reported through AfterAdminAction.
const (
	AdminActionPostDelete    = "post.delete"
	AdminActionCommentDelete = "comment.delete"
	AdminActionUserDelete    = "user.delete"
	AdminActionRoleChange    = "user.role_change"
)

// AdminCommandConfig wires the administrative commands.
type AdminCommandConfig struct {
	Store    types.DocumentStore
	Profiles types.ProfileRepository
	Cache    Invalidator
	Hooks    types.Hooks
	Clock    types.Clock
	Logger   types.Logger
}

// AdminResult counts the documents an admin write removed.
type AdminResult struct {
	Removed int
}

type adminBase struct {
	store    types.DocumentStore
	profiles types.ProfileRepository
	cache    Invalidator
	hooks    types.Hooks
	clock    types.Clock
	logger   types.Logger
}

func newAdminBase(cfg AdminCommandConfig) adminBase {
	return adminBase{
		store:    cfg.Store,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		hooks:    safeHooks(cfg.Hooks),
		clock:    safeClock(cfg.Clock),
		logger:   safeLogger(cfg.Logger),
	}
}

func (b adminBase) authorize(ctx context.Context, actor types.ActorRef) error {
	if b.store == nil {
		return types.ErrMissingDocumentStore
	}
	return requireAdmin(ctx, b.profiles, actor)
}

// finish reports the action. Callers invalidate the snapshot themselves once
// authorization passes, so a cascade that stops halfway still drops it.
func (b adminBase) finish(ctx context.Context, action, objectType, objectID string, actor types.ActorRef, removed int, result *AdminResult) {
	b.logger.Info("admin action applied",
		"action", action,
		"object_id", objectID,
		"actor_id", actor.ID.String(),
		"removed", removed,
	)
	if result != nil {
		result.Removed = removed
	}
	emitAdminHook(ctx, b.hooks, types.AdminEvent{
		Action:     action,
		ActorID:    actor.ID,
		ObjectType: objectType,
		ObjectID:   objectID,
		Removed:    removed,
		OccurredAt: now(b.clock),
	})
}

// abort records what a failed cascade already removed.
func (b adminBase) abort(action, objectID string, removed int, result *AdminResult, err error) error {
	b.logger.Error("admin action interrupted", err,
		"action", action,
		"object_id", objectID,
		"removed", removed,
	)
	if result != nil {
		result.Removed = removed
	}
	return err
}

// deleteWhere removes every document in collection whose field equals value
// and returns how many were deleted, including before a failure.
func (b adminBase) deleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	docs, err := b.store.Query(ctx, collection, types.Where(field, value))
	if err != nil {
		return 0, err
	}
	for i, doc := range docs {
		if err := b.store.Delete(ctx, collection, doc.ID); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

// deletePost removes a post with its likes and comments.
func (b adminBase) deletePost(ctx context.Context, postID string) (int, error) {
	removed := 0
	for _, collection := range []string{types.CollectionLikes, types.CollectionComments} {
		n, err := b.deleteWhere(ctx, collection, "post_id", postID)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	if err := b.store.Delete(ctx, types.CollectionPosts, postID); err != nil {
		return removed, err
	}
	return removed + 1, nil
}

// PostDeleteInput identifies the post to delete.
type PostDeleteInput struct {
	PostID string
	Actor  types.ActorRef
	Result *AdminResult
}

// Type implements gocommand.Message.
func (PostDeleteInput) Type() string {
	return "command.admin.post_delete"
}

// Validate implements gocommand.Message.
func (input PostDeleteInput) Validate() error {
	if strings.TrimSpace(input.PostID) == "" {
		return ErrPostIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return nil
}

// PostDeleteCommand deletes a post and cascades to its likes and comments.
type PostDeleteCommand struct {
	adminBase
}

// NewPostDeleteCommand constructs the post delete handler.
func NewPostDeleteCommand(cfg AdminCommandConfig) *PostDeleteCommand {
	return &PostDeleteCommand{adminBase: newAdminBase(cfg)}
}

var _ gocommand.Commander[PostDeleteInput] = (*PostDeleteCommand)(nil)

// Execute implements gocommand.Commander.
func (c *PostDeleteCommand) Execute(ctx context.Context, input PostDeleteInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if err := c.authorize(ctx, input.Actor); err != nil {
		return err
	}
	defer invalidate(c.cache)

	removed, err := c.deletePost(ctx, input.PostID)
	if err != nil {
		return c.abort(AdminActionPostDelete, input.PostID, removed, input.Result, err)
	}
	c.finish(ctx, AdminActionPostDelete, types.CollectionPosts, input.PostID, input.Actor, removed, input.Result)
	return nil
}

// CommentDeleteInput identifies the comment to delete.
type CommentDeleteInput struct {
	CommentID string
	Actor     types.ActorRef
	Result    *AdminResult
}

// Type implements gocommand.Message.
func (CommentDeleteInput) Type() string {
	return "command.admin.comment_delete"
}

// Validate implements gocommand.Message.
func (input CommentDeleteInput) Validate() error {
	if strings.TrimSpace(input.CommentID) == "" {
		return ErrCommentIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return nil
}

// CommentDeleteCommand deletes a single comment.
type CommentDeleteCommand struct {
	adminBase
}

// NewCommentDeleteCommand constructs the comment delete handler.
func NewCommentDeleteCommand(cfg AdminCommandConfig) *CommentDeleteCommand {
	return &CommentDeleteCommand{adminBase: newAdminBase(cfg)}
}

var _ gocommand.Commander[CommentDeleteInput] = (*CommentDeleteCommand)(nil)

// Execute implements gocommand.Commander.
func (c *CommentDeleteCommand) Execute(ctx context.Context, input CommentDeleteInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if err := c.authorize(ctx, input.Actor); err != nil {
		return err
	}
	defer invalidate(c.cache)

	if err := c.store.Delete(ctx, types.CollectionComments, input.CommentID); err != nil {
		return err
	}
	c.finish(ctx, AdminActionCommentDelete, types.CollectionComments, input.CommentID, input.Actor, 1, input.Result)
	return nil
}

// UserDeleteInput identifies the user to remove.
type UserDeleteInput struct {
	UserID uuid.UUID
	Actor  types.ActorRef
	Result *AdminResult
}

// Type implements gocommand.Message.
func (UserDeleteInput) Type() string {
	return "command.admin.user_delete"
}

// Validate implements gocommand.Message.
func (input UserDeleteInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return nil
}

// UserDeleteCommand removes a user's posts (with their likes and comments),
// the user's own comments and likes, the shared location and the profile.
type UserDeleteCommand struct {
	adminBase
}

// NewUserDeleteCommand constructs the user delete handler.
func NewUserDeleteCommand(cfg AdminCommandConfig) *UserDeleteCommand {
	return &UserDeleteCommand{adminBase: newAdminBase(cfg)}
}

var _ gocommand.Commander[UserDeleteInput] = (*UserDeleteCommand)(nil)

// Execute implements gocommand.Commander.
func (c *UserDeleteCommand) Execute(ctx context.Context, input UserDeleteInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if err := c.authorize(ctx, input.Actor); err != nil {
		return err
	}
	defer invalidate(c.cache)
	userID := input.UserID.String()
	fail := func(removed int, err error) error {
		return c.abort(AdminActionUserDelete, userID, removed, input.Result, err)
	}

	posts, err := c.store.Query(ctx, types.CollectionPosts, types.Where("user_id", userID))
	if err != nil {
		return fail(0, err)
	}
	removed := 0
	for _, post := range posts {
		n, err := c.deletePost(ctx, post.ID)
		removed += n
		if err != nil {
			return fail(removed, err)
		}
	}
	for _, collection := range []string{types.CollectionComments, types.CollectionLikes} {
		n, err := c.deleteWhere(ctx, collection, "user_id", userID)
		removed += n
		if err != nil {
			return fail(removed, err)
		}
	}
	if err := c.store.Delete(ctx, types.CollectionLocations, userID); err != nil {
		return fail(removed, err)
	}
	if err := c.profiles.DeleteProfile(ctx, input.UserID); err != nil && !types.IsNotFound(err) {
		return fail(removed, err)
	}
	c.finish(ctx, AdminActionUserDelete, types.CollectionUsers, userID, input.Actor, removed, input.Result)
	return nil
}

// RoleChangeInput assigns a role to a user.
type RoleChangeInput struct {
	UserID uuid.UUID
	Role   string
	Actor  types.ActorRef
	Result *types.UserProfile
}

// Type implements gocommand.Message.
func (RoleChangeInput) Type() string {
	return "command.admin.role_change"
}

// Validate implements gocommand.Message.
func (input RoleChangeInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	switch strings.ToLower(strings.TrimSpace(input.Role)) {
	case types.RoleUser, types.RoleAdmin:
		return nil
	}
	return ErrRoleInvalid
}

// RoleChangeCommand updates the role on the canonical profile.
type RoleChangeCommand struct {
	adminBase
}

// NewRoleChangeCommand constructs the role change handler.
func NewRoleChangeCommand(cfg AdminCommandConfig) *RoleChangeCommand {
	return &RoleChangeCommand{adminBase: newAdminBase(cfg)}
}

var _ gocommand.Commander[RoleChangeInput] = (*RoleChangeCommand)(nil)

// Execute implements gocommand.Commander.
func (c *RoleChangeCommand) Execute(ctx context.Context, input RoleChangeInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if err := requireAdmin(ctx, c.profiles, input.Actor); err != nil {
		return err
	}
	defer invalidate(c.cache)

	profile, err := c.profiles.GetProfile(ctx, input.UserID)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrProfileNotFound
	}
	profile.Role = strings.ToLower(strings.TrimSpace(input.Role))
	saved, err := c.profiles.UpsertProfile(ctx, *profile)
	if err != nil {
		return err
	}
	if saved != nil {
		profile = saved
	}
	if input.Result != nil {
		*input.Result = *profile
	}
	c.finish(ctx, AdminActionRoleChange, types.CollectionUsers, input.UserID.String(), input.Actor, 0, nil)
	return nil
}
