package command

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// AvatarCommandConfig wires the avatar upload command.
type AvatarCommandConfig struct {
	Repository  types.ProfileRepository
	Objects     types.ObjectStore
	Sync        Syncer
	FeatureGate featuregate.FeatureGate
	// MaxBytes defaults to DefaultMaxAvatarBytes.
	MaxBytes int64
	Hooks    types.Hooks
	Clock    types.Clock
	Logger   types.Logger
}

// AvatarUploadInput carries the uploaded image.
type AvatarUploadInput struct {
	UserID      uuid.UUID
	Actor       types.ActorRef
	Filename    string
	ContentType string
	Payload     []byte
	Result      *ProfileSaveResult
}

// Type implements gocommand.Message.
func (AvatarUploadInput) Type() string {
	return "command.profile.avatar_upload"
}

// Validate implements gocommand.Message.
func (input AvatarUploadInput) Validate() error {
	if input.UserID == uuid.Nil {
		return ErrUserIDRequired
	}
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	if len(input.Payload) == 0 {
		return ErrAvatarRequired
	}
	if !isImage(input.ContentType) {
		return ErrAvatarContentType
	}
	return nil
}

// AvatarUploadCommand stores a new avatar, points the profile at it and fans
// the reference out.
type AvatarUploadCommand struct {
	repo     types.ProfileRepository
	objects  types.ObjectStore
	sync     Syncer
	gate     featuregate.FeatureGate
	maxBytes int64
	hooks    types.Hooks
	clock    types.Clock
	logger   types.Logger
}

// NewAvatarUploadCommand constructs the avatar handler.
func NewAvatarUploadCommand(cfg AvatarCommandConfig) *AvatarUploadCommand {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAvatarBytes
	}
	return &AvatarUploadCommand{
		repo:     cfg.Repository,
		objects:  cfg.Objects,
		sync:     cfg.Sync,
		gate:     cfg.FeatureGate,
		maxBytes: maxBytes,
		hooks:    safeHooks(cfg.Hooks),
		clock:    safeClock(cfg.Clock),
		logger:   safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[AvatarUploadInput] = (*AvatarUploadCommand)(nil)

// Execute uploads the payload. The previous avatar is removed only when it
// was produced by the configured object store.
func (c *AvatarUploadCommand) Execute(ctx context.Context, input AvatarUploadInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if int64(len(input.Payload)) > c.maxBytes {
		return ErrAvatarTooLarge
	}
	if c.repo == nil {
		return types.ErrMissingProfileRepository
	}
	if c.objects == nil {
		return types.ErrMissingObjectStore
	}

	existing, err := c.repo.GetProfile(ctx, input.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrProfileNotFound
	}

	stamp := now(c.clock)
	key := fmt.Sprintf("avatars/%s/%d%s", input.UserID, stamp.UnixNano(), avatarExt(input.Filename, input.ContentType))
	ref, err := c.objects.Put(ctx, key, input.Payload, input.ContentType)
	if err != nil {
		return err
	}

	profile := *existing
	previous := profile.AvatarRef
	profile.AvatarRef = ref
	saved, err := c.repo.UpsertProfile(ctx, profile)
	if err != nil {
		if delErr := c.objects.Delete(ctx, key); delErr != nil {
			c.logger.Error("avatar cleanup failed", delErr, "key", key)
		}
		return err
	}
	if saved != nil {
		profile = *saved
	}

	if oldKey, ok := c.objects.KeyFor(previous); ok && previous != ref {
		if err := c.objects.Delete(ctx, oldKey); err != nil {
			c.logger.Error("previous avatar delete failed", err, "key", oldKey)
		}
	}

	changes := map[types.CanonicalField]string{types.FieldAvatarRef: ref}
	result := ProfileSaveResult{Profile: profile}
	fanOut(ctx, c.gate, c.sync, c.logger, input.UserID, input.Actor, changes, &result)
	if input.Result != nil {
		*input.Result = result
	}

	emitProfileHook(ctx, c.hooks, types.ProfileEvent{
		UserID:     input.UserID,
		ActorID:    input.Actor.ID,
		OccurredAt: stamp,
		Profile:    profile,
		Changes:    changes,
	})
	return nil
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

func avatarExt(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
