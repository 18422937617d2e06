package fanout

import (
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Option customizes how a single Sync call is journaled.
type Option func(*syncOptions)

type syncOptions struct {
	actorID        uuid.UUID
	kind           types.JournalKind
	enqueueRetries bool
}

// WithActor attributes the journal entry to the actor.
func WithActor(actorID uuid.UUID) Option {
	return func(o *syncOptions) {
		o.actorID = actorID
	}
}

// WithJournalKind overrides the journal entry kind (defaults to sync).
func WithJournalKind(kind types.JournalKind) Option {
	return func(o *syncOptions) {
		if kind != "" {
			o.kind = kind
		}
	}
}

// WithoutRetries stops failed collections from being queued for replay.
func WithoutRetries() Option {
	return func(o *syncOptions) {
		o.enqueueRetries = false
	}
}

func applyOptions(opts []Option) syncOptions {
	options := syncOptions{kind: types.JournalKindSync, enqueueRetries: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}
