package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultMaxAttempts      = 5
	DefaultRetryBatchSize   = 50
	DefaultRetryParallelism = 4
)

// Replayer re-runs the fan-out for one collection key.
type Replayer interface {
	SyncCollection(ctx context.Context, userID uuid.UUID, key string, changes map[types.CanonicalField]string) (types.CollectionOutcome, error)
}

// RetrierConfig wires the retry worker.
type RetrierConfig struct {
	Queue       types.RetryQueue
	Replayer    Replayer
	Journal     types.JournalSink
	Profiles    types.ProfileRepository
	MaxAttempts int
	BatchSize   int
	Parallelism int
	Clock       types.Clock
	IDGen       types.IDGenerator
	Logger      types.Logger
}

// RetryReport summarizes one pass over the queue.
type RetryReport struct {
	Attempted int
	Succeeded int
	Pending   int
	GaveUp    int
}

// Retrier drains pending retries through the replayer.
type Retrier struct {
	queue       types.RetryQueue
	replayer    Replayer
	journal     types.JournalSink
	profiles    types.ProfileRepository
	maxAttempts int
	batchSize   int
	parallelism int
	clock       types.Clock
	idGen       types.IDGenerator
	logger      types.Logger
}

// NewRetrier validates the config and applies defaults.
func NewRetrier(cfg RetrierConfig) (*Retrier, error) {
	if cfg.Queue == nil {
		return nil, errors.New("journal: retry queue required")
	}
	if cfg.Replayer == nil {
		return nil, types.ErrMissingSyncEngine
	}
	r := &Retrier{
		queue:       cfg.Queue,
		replayer:    cfg.Replayer,
		journal:     cfg.Journal,
		profiles:    cfg.Profiles,
		maxAttempts: cfg.MaxAttempts,
		batchSize:   cfg.BatchSize,
		parallelism: cfg.Parallelism,
		clock:       cfg.Clock,
		idGen:       cfg.IDGen,
		logger:      cfg.Logger,
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultRetryBatchSize
	}
	if r.parallelism <= 0 {
		r.parallelism = DefaultRetryParallelism
	}
	if r.clock == nil {
		r.clock = types.SystemClock{}
	}
	if r.idGen == nil {
		r.idGen = types.UUIDGenerator{}
	}
	if r.logger == nil {
		r.logger = types.NopLogger{}
	}
	return r, nil
}

// RunOnce replays one batch of pending retries. An item that keeps failing
// is given up once it reaches the attempt limit.
func (r *Retrier) RunOnce(ctx context.Context) (RetryReport, error) {
	items, err := r.queue.Pending(ctx, r.batchSize)
	if err != nil {
		return RetryReport{}, err
	}

	var (
		mu     sync.Mutex
		report RetryReport
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.parallelism)
	for _, item := range items {
		item := item
		p.Go(func(ctx context.Context) error {
			status, err := r.replay(ctx, item)
			mu.Lock()
			report.Attempted++
			switch status {
			case types.RetryStatusDone:
				report.Succeeded++
			case types.RetryStatusGaveUp:
				report.GaveUp++
			default:
				report.Pending++
			}
			mu.Unlock()
			return err
		})
	}
	err = p.Wait()
	return report, err
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Retrier) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("retry pass failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Retrier) replay(ctx context.Context, item types.RetryItem) (types.RetryStatus, error) {
	changes, gone, err := r.currentChanges(ctx, item)
	if gone {
		r.logger.Info("retry dropped, profile deleted", "retry_id", item.ID.String(), "collection", item.Collection)
		if err := r.queue.Resolve(ctx, item.ID, types.RetryStatusDone, ""); err != nil {
			return types.RetryStatusDone, err
		}
		r.record(ctx, item, types.CollectionOutcome{Collection: item.Collection}, types.RetryStatusDone, "")
		return types.RetryStatusDone, nil
	}

	var outcome types.CollectionOutcome
	if err == nil {
		outcome, err = r.replayer.SyncCollection(ctx, item.UserID, item.Collection, changes)
	}
	status := types.RetryStatusDone
	lastErr := ""
	switch {
	case err != nil:
		lastErr = err.Error()
	case !outcome.Success:
		lastErr = outcome.Error
	case outcome.Failed > 0:
		lastErr = "record writes failed"
	}
	if lastErr != "" {
		status = types.RetryStatusPending
		if item.Attempts+1 >= r.maxAttempts {
			status = types.RetryStatusGaveUp
		}
	}

	if err := r.queue.Resolve(ctx, item.ID, status, lastErr); err != nil {
		return status, err
	}
	r.logger.Info("retry replayed",
		"retry_id", item.ID.String(),
		"collection", item.Collection,
		"status", string(status),
		"attempt", item.Attempts+1,
	)
	r.record(ctx, item, outcome, status, lastErr)
	return status, nil
}

// currentChanges rebuilds the queued change set from the canonical profile so a
// late replay never writes back a value that a newer save replaced. Without a
// profile repository the queued values are replayed as is.
func (r *Retrier) currentChanges(ctx context.Context, item types.RetryItem) (map[types.CanonicalField]string, bool, error) {
	if r.profiles == nil {
		return item.Changes, false, nil
	}
	profile, err := r.profiles.GetProfile(ctx, item.UserID)
	if err != nil {
		return nil, false, err
	}
	if profile == nil {
		return nil, true, nil
	}
	canonical := profile.Canonical()
	changes := make(map[types.CanonicalField]string, len(item.Changes))
	for field := range item.Changes {
		if value, ok := canonical[field]; ok {
			changes[field] = value
		}
	}
	return changes, false, nil
}

func (r *Retrier) record(ctx context.Context, item types.RetryItem, outcome types.CollectionOutcome, status types.RetryStatus, lastErr string) {
	if r.journal == nil {
		return
	}
	data := map[string]any{
		"retry_id":   item.ID.String(),
		"collection": item.Collection,
		"attempt":    item.Attempts + 1,
		"status":     string(status),
	}
	if lastErr != "" {
		data["error"] = lastErr
	}
	entry := types.JournalEntry{
		ID:         r.idGen.UUID(),
		UserID:     item.UserID,
		Kind:       types.JournalKindRetry,
		Updated:    outcome.Updated,
		Failed:     outcome.Failed,
		Complete:   status == types.RetryStatusDone,
		Data:       data,
		OccurredAt: r.clock.Now(),
	}
	if err := r.journal.Record(ctx, entry); err != nil {
		r.logger.Error("retry journal write failed", err, "retry_id", item.ID.String())
	}
}
