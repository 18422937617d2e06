package command

import (
	"fmt"

	"github.com/goliatone/go-profilesync/pkg/types"
)

const (
	// MaxDisplayNameLength bounds the trimmed display name.
	MaxDisplayNameLength = 50
	// MaxBioLength bounds the profile bio.
	MaxBioLength = 500
	// DefaultMaxAvatarBytes bounds avatar uploads (5 MB).
	DefaultMaxAvatarBytes = 5 << 20
	// SyncIncompleteWarning is reported when a save succeeded but fan-out did not.
	SyncIncompleteWarning = "saved, but sync incomplete"
)

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = types.ErrActorRequired
	// ErrUserIDRequired occurs when commands omit the target user.
	ErrUserIDRequired = types.ErrUserIDRequired
	// ErrDisplayNameRequired indicates the trimmed display name is empty.
	ErrDisplayNameRequired = fmt.Errorf("%w: display name required", types.ErrInvalidArgument)
	// ErrDisplayNameTooLong indicates the display name exceeds MaxDisplayNameLength.
	ErrDisplayNameTooLong = fmt.Errorf("%w: display name exceeds %d characters", types.ErrInvalidArgument, MaxDisplayNameLength)
	// ErrBioTooLong indicates the bio exceeds MaxBioLength.
	ErrBioTooLong = fmt.Errorf("%w: bio exceeds %d characters", types.ErrInvalidArgument, MaxBioLength)
	// ErrAvatarRequired indicates an upload without payload.
	ErrAvatarRequired = fmt.Errorf("%w: avatar payload required", types.ErrInvalidArgument)
	// ErrAvatarContentType indicates a non-image upload.
	ErrAvatarContentType = fmt.Errorf("%w: avatar must be an image", types.ErrInvalidArgument)
	// ErrAvatarTooLarge indicates the upload exceeds the configured size limit.
	ErrAvatarTooLarge = fmt.Errorf("%w: avatar too large", types.ErrInvalidArgument)
	// ErrPostIDRequired occurs when post commands omit the post.
	ErrPostIDRequired = fmt.Errorf("%w: post id required", types.ErrInvalidArgument)
	// ErrCommentIDRequired occurs when comment commands omit the comment.
	ErrCommentIDRequired = fmt.Errorf("%w: comment id required", types.ErrInvalidArgument)
	// ErrRoleInvalid indicates a role other than user or admin.
	ErrRoleInvalid = fmt.Errorf("%w: role must be user or admin", types.ErrInvalidArgument)
	// ErrCoordinatesInvalid indicates latitude or longitude out of range.
	ErrCoordinatesInvalid = fmt.Errorf("%w: coordinates out of range", types.ErrInvalidArgument)
	// ErrAdminRequired indicates the actor's profile lacks the admin role.
	ErrAdminRequired = fmt.Errorf("%w: admin role required", types.ErrAccessDenied)
	// ErrProfileNotFound indicates the target user has no profile.
	ErrProfileNotFound = fmt.Errorf("%w: profile not found", types.ErrNotFound)
)
