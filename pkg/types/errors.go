package types

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidArgument = "INVALID_ARGUMENT"
	TextCodeAccessDenied    = "ACCESS_DENIED"
	TextCodePartialWrite    = "PARTIAL_WRITE_FAILURE"
	TextCodeNotFound        = "NOT_FOUND"
)

var (
	// ErrInvalidArgument indicates malformed caller input.
	ErrInvalidArgument = errors.New("profilesync: invalid argument")
	// ErrAccessDenied indicates the backing store rejected the operation.
	ErrAccessDenied = errors.New("profilesync: access denied")
	// ErrPartialWrite indicates an atomic multi-record write was rejected.
	ErrPartialWrite = errors.New("profilesync: partial write failure")
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("profilesync: not found")

	// ErrUserIDRequired indicates a user identifier was omitted.
	ErrUserIDRequired = errors.New("profilesync: user id required")
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = errors.New("profilesync: actor reference required")
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("profilesync: service not ready")
	// ErrMissingDocumentStore occurs when no document store was supplied.
	ErrMissingDocumentStore = errors.New("profilesync: missing document store")
	// ErrMissingProfileRepository occurs when profile commands lack a storage backend.
	ErrMissingProfileRepository = errors.New("profilesync: missing profile repository")
	// ErrMissingObjectStore occurs when avatar uploads lack an object store.
	ErrMissingObjectStore = errors.New("profilesync: missing object store")
	// ErrMissingSyncEngine occurs when commands requiring fan-out have no engine.
	ErrMissingSyncEngine = errors.New("profilesync: missing sync engine")
	// ErrMissingAuditor occurs when repair or consistency queries have no auditor.
	ErrMissingAuditor = errors.New("profilesync: missing consistency auditor")
	// ErrMissingSnapshot occurs when aggregation queries have no snapshot source.
	ErrMissingSnapshot = errors.New("profilesync: missing snapshot source")
	// ErrMissingJournal occurs when journal queries have no repository.
	ErrMissingJournal = errors.New("profilesync: missing sync journal")
)

// InvalidArgument builds a validation error wrapping ErrInvalidArgument.
func InvalidArgument(msg string) error {
	return goerrors.Wrap(ErrInvalidArgument, goerrors.CategoryValidation, msg).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeInvalidArgument)
}

// AccessDenied builds an authorization error wrapping ErrAccessDenied.
func AccessDenied(msg string) error {
	return goerrors.Wrap(ErrAccessDenied, goerrors.CategoryAuthz, msg).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeAccessDenied)
}

// NotFound builds a not-found error wrapping ErrNotFound.
func NotFound(msg string) error {
	return goerrors.Wrap(ErrNotFound, goerrors.CategoryNotFound, msg).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeNotFound)
}

// PartialWrite wraps a rejected bulk write.
func PartialWrite(collection string, cause error) error {
	if cause == nil {
		cause = ErrPartialWrite
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, "profilesync: bulk write rejected").
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodePartialWrite).
		WithMetadata(map[string]any{"collection": collection})
}

// IsInvalidArgument reports whether err is a validation failure.
func IsInvalidArgument(err error) bool {
	return matches(err, ErrInvalidArgument, func(e *goerrors.Error) bool {
		return e.Category == goerrors.CategoryValidation
	})
}

// IsAccessDenied reports whether err is an authorization failure.
func IsAccessDenied(err error) bool {
	return matches(err, ErrAccessDenied, func(e *goerrors.Error) bool {
		return e.Category == goerrors.CategoryAuthz
	})
}

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return matches(err, ErrNotFound, func(e *goerrors.Error) bool {
		return e.Category == goerrors.CategoryNotFound
	})
}

// IsPartialWrite reports whether err is a rejected bulk write.
func IsPartialWrite(err error) bool {
	return matches(err, ErrPartialWrite, func(e *goerrors.Error) bool {
		return e.TextCode == TextCodePartialWrite
	})
}

func matches(err, sentinel error, match func(*goerrors.Error) bool) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return match(richErr)
	}
	return false
}
