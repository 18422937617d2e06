package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRetrier_ReplaysPendingItems(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := newTestRepository(t, clock)
	userID := uuid.New()

	for _, coll := range []string{"comments", "likes"} {
		require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
			UserID:     userID,
			Collection: coll,
			Changes:    map[types.CanonicalField]string{types.FieldDisplayName: "Alicia"},
		}))
	}

	replayer := &stubReplayer{fail: map[string]error{"likes": errors.New("store unavailable")}}
	retrier, err := NewRetrier(RetrierConfig{Queue: repo, Replayer: replayer, Journal: repo, MaxAttempts: 2, Clock: clock})
	require.NoError(t, err)

	report, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, RetryReport{Attempted: 2, Succeeded: 1, Pending: 1}, report)

	pending, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "likes", pending[0].Collection)

	report, err = retrier.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, RetryReport{Attempted: 1, GaveUp: 1}, report)

	pending, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	page, err := repo.ListJournal(ctx, types.JournalFilter{Kinds: []types.JournalKind{types.JournalKindRetry}})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 3, replayer.callCount())
}

func TestRetrier_TreatsRecordFailuresAsPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)
	require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
		UserID:     uuid.New(),
		Collection: "posts",
		Changes:    map[types.CanonicalField]string{types.FieldAvatarRef: "a.png"},
	}))

	replayer := &stubReplayer{partial: true}
	retrier, err := NewRetrier(RetrierConfig{Queue: repo, Replayer: replayer})
	require.NoError(t, err)

	report, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Pending)
}

func TestRetrier_RebuildsChangesFromCanonicalProfile(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)
	profiles := memory.NewProfileRepository(nil)
	current := uuid.New()
	deleted := uuid.New()

	_, err := profiles.UpsertProfile(ctx, types.UserProfile{UserID: current, DisplayName: "Newer", AvatarRef: "b.png"})
	require.NoError(t, err)
	require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
		UserID:     current,
		Collection: "posts",
		Changes:    map[types.CanonicalField]string{types.FieldDisplayName: "Older"},
	}))
	require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
		UserID:     deleted,
		Collection: "likes",
		Changes:    map[types.CanonicalField]string{types.FieldDisplayName: "Gone"},
	}))

	replayer := &stubReplayer{}
	retrier, err := NewRetrier(RetrierConfig{Queue: repo, Replayer: replayer, Profiles: profiles, Parallelism: 1})
	require.NoError(t, err)

	report, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, RetryReport{Attempted: 2, Succeeded: 2}, report)
	require.Equal(t, 1, replayer.callCount())
	require.Equal(t, map[types.CanonicalField]string{types.FieldDisplayName: "Newer"}, replayer.lastChanges())

	pending, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestNewRetrier_RequiresQueueAndReplayer(t *testing.T) {
	_, err := NewRetrier(RetrierConfig{Replayer: &stubReplayer{}})
	require.Error(t, err)

	_, err = NewRetrier(RetrierConfig{Queue: newTestRepository(t, nil)})
	require.ErrorIs(t, err, types.ErrMissingSyncEngine)
}

type stubReplayer struct {
	mu      sync.Mutex
	calls   int
	changes map[types.CanonicalField]string
	fail    map[string]error
	partial bool
}

func (s *stubReplayer) SyncCollection(_ context.Context, _ uuid.UUID, key string, changes map[types.CanonicalField]string) (types.CollectionOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.changes = changes
	s.mu.Unlock()
	if err := s.fail[key]; err != nil {
		return types.CollectionOutcome{Collection: key, Error: err.Error()}, err
	}
	outcome := types.CollectionOutcome{Collection: key, Updated: 2, Success: true}
	if s.partial {
		outcome.Failed = 1
	}
	return outcome, nil
}

func (s *stubReplayer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubReplayer) lastChanges() map[types.CanonicalField]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes
}
