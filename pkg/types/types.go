package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies the caller performing a command.
type ActorRef struct {
	ID   uuid.UUID
	Type string
}

// Pagination supports bounded listings across read models.
type Pagination struct {
	Limit  int
	Offset int
}

// ProfileEvent signals that a profile mutation occurred.
type ProfileEvent struct {
	UserID     uuid.UUID
	ActorID    uuid.UUID
	OccurredAt time.Time
	Profile    UserProfile
	Changes    map[CanonicalField]string
}

// SyncEvent is emitted once a fan-out job completes, regardless of outcome.
type SyncEvent struct {
	UserID     uuid.UUID
	Changes    map[CanonicalField]string
	Result     SyncResult
	Duration   time.Duration
	OccurredAt time.Time
}

// AuditEvent is emitted after a consistency audit.
type AuditEvent struct {
	UserID     uuid.UUID
	Report     AuditReport
	OccurredAt time.Time
}

// AdminEvent is emitted after administrative writes (deletes, role changes).
type AdminEvent struct {
	Action     string
	ActorID    uuid.UUID
	ObjectType string
	ObjectID   string
	Removed    int
	OccurredAt time.Time
}

// SnapshotEvent describes how a snapshot read was served.
type SnapshotEvent struct {
	Collections []string
	Hit         bool
	Duration    time.Duration
}

// Hooks groups optional callbacks invoked after key workflows complete.
type Hooks struct {
	AfterProfileChange func(context.Context, ProfileEvent)
	AfterSync          func(context.Context, SyncEvent)
	AfterAudit         func(context.Context, AuditEvent)
	AfterAdminAction   func(context.Context, AdminEvent)
	AfterSnapshotRead  func(context.Context, SnapshotEvent)
}

// Merge returns hooks that invoke both h and other for every callback.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		AfterProfileChange: chain(h.AfterProfileChange, other.AfterProfileChange),
		AfterSync:          chain(h.AfterSync, other.AfterSync),
		AfterAudit:         chain(h.AfterAudit, other.AfterAudit),
		AfterAdminAction:   chain(h.AfterAdminAction, other.AfterAdminAction),
		AfterSnapshotRead:  chain(h.AfterSnapshotRead, other.AfterSnapshotRead),
	}
}

func chain[E any](first, second func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, event E) {
		first(ctx, event)
		second(ctx, event)
	}
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}
