package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ObjectStore persists binary assets such as avatars.
type ObjectStore interface {
	// Put stores the payload and returns its public reference.
	Put(ctx context.Context, key string, payload []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFor returns the object key for a reference this store produced.
	KeyFor(ref string) (string, bool)
}

// JournalKind classifies journal entries.
type JournalKind string

const (
	JournalKindSync   JournalKind = "sync"
	JournalKindAudit  JournalKind = "audit"
	JournalKindRepair JournalKind = "repair"
	JournalKindRetry  JournalKind = "retry"
)

// JournalEntry records the outcome of a sync-layer operation.
type JournalEntry struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ActorID    uuid.UUID
	Kind       JournalKind
	Updated    int
	Failed     int
	Complete   bool
	Data       map[string]any
	OccurredAt time.Time
}

// RetryStatus tracks pending fan-out retries.
type RetryStatus string

const (
	RetryStatusPending RetryStatus = "pending"
	RetryStatusDone    RetryStatus = "done"
	RetryStatusGaveUp  RetryStatus = "gave_up"
)

// RetryItem is a queued re-run of a failed collection fan-out.
type RetryItem struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Collection string
	Changes    map[CanonicalField]string
	Attempts   int
	Status     RetryStatus
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	UserID     uuid.UUID
	Kinds      []JournalKind
	Since      *time.Time
	Pagination Pagination
}

// JournalPage is a bounded listing of journal entries.
type JournalPage struct {
	Entries    []JournalEntry
	Total      int
	NextOffset int
	HasMore    bool
}

// JournalStats aggregates entries by kind.
type JournalStats struct {
	Total  int
	ByKind map[JournalKind]int
}

// JournalSink receives sync-layer outcomes.
type JournalSink interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// RetryQueue stores failed collection fan-outs for later replay.
type RetryQueue interface {
	Enqueue(ctx context.Context, item RetryItem) error
	Pending(ctx context.Context, limit int) ([]RetryItem, error)
	Resolve(ctx context.Context, id uuid.UUID, status RetryStatus, lastErr string) error
}

// JournalRepository exposes journal read models.
type JournalRepository interface {
	JournalSink
	ListJournal(ctx context.Context, filter JournalFilter) (JournalPage, error)
	JournalStats(ctx context.Context, filter JournalFilter) (JournalStats, error)
}
