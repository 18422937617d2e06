package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntryRecord models the persisted row in sync_journal.
type EntryRecord struct {
	bun.BaseModel `bun:"table:sync_journal"`

	ID         uuid.UUID      `bun:",pk,type:uuid"`
	UserID     uuid.UUID      `bun:"user_id,type:uuid"`
	ActorID    uuid.UUID      `bun:"actor_id,type:uuid"`
	Kind       string         `bun:"kind"`
	Updated    int            `bun:"updated"`
	Failed     int            `bun:"failed"`
	Complete   bool           `bun:"complete"`
	Data       map[string]any `bun:"data,type:jsonb"`
	OccurredAt time.Time      `bun:"occurred_at"`
}

// RetryRecord models the persisted row in sync_retries.
type RetryRecord struct {
	bun.BaseModel `bun:"table:sync_retries"`

	ID         uuid.UUID         `bun:",pk,type:uuid"`
	UserID     uuid.UUID         `bun:"user_id,type:uuid"`
	Collection string            `bun:"collection"`
	Changes    map[string]string `bun:"changes,type:jsonb"`
	Attempts   int               `bun:"attempts"`
	Status     string            `bun:"status"`
	LastError  string            `bun:"last_error"`
	CreatedAt  time.Time         `bun:"created_at"`
	UpdatedAt  time.Time         `bun:"updated_at"`
}
