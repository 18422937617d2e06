package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/journal"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store"
	"github.com/goliatone/go-profilesync/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEngine_SyncRejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(t, memory.New())

	_, err := engine.Sync(context.Background(), uuid.Nil, map[types.CanonicalField]string{types.FieldDisplayName: "x"})
	require.True(t, types.IsInvalidArgument(err))

	_, err = engine.Sync(context.Background(), uuid.New(), nil)
	require.True(t, types.IsInvalidArgument(err))

	_, err = engine.Sync(context.Background(), uuid.New(), map[types.CanonicalField]string{"bio": "x"})
	require.True(t, types.IsInvalidArgument(err))
}

func TestEngine_SyncUpdatesEveryCollection(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	other := uuid.New()
	seedContent(t, st, userID, other)

	cache := &countingCache{}
	var events []types.SyncEvent
	engine, err := NewEngine(Config{
		Store: st,
		Cache: cache,
		Clock: fixedClock{now: stampTime},
		Hooks: types.Hooks{AfterSync: func(_ context.Context, event types.SyncEvent) {
			events = append(events, event)
		}},
	})
	require.NoError(t, err)

	result, err := engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)
	require.True(t, result.Complete())
	require.Empty(t, result.Errors)
	// 2 posts, 1 comment, 1 like, 1 sent message, 1 received message, 1 notification
	require.Equal(t, 7, result.TotalUpdated)
	require.Len(t, result.Collections, len(types.DefaultCollections()))

	posts, ok := result.Outcome(types.CollectionPosts)
	require.True(t, ok)
	require.Equal(t, 2, posts.Updated)
	require.True(t, posts.Success)

	post, _ := st.Get(types.CollectionPosts, "p1")
	require.Equal(t, "Alicia", post.String("user_name"))
	require.Equal(t, stampTime, post.Fields["updated_at"])

	foreign, _ := st.Get(types.CollectionPosts, "p3")
	require.Equal(t, "Bob", foreign.String("user_name"))

	sent, _ := st.Get(types.CollectionMessages, "m1")
	require.Equal(t, "Alicia", sent.String("sender_name"))
	require.Equal(t, "Bob", sent.String("receiver_name"))
	received, _ := st.Get(types.CollectionMessages, "m2")
	require.Equal(t, "Alicia", received.String("receiver_name"))

	note, _ := st.Get(types.CollectionNotifications, "n1")
	require.Equal(t, "Alicia", note.String("sender_name"))

	require.Equal(t, 1, cache.count())
	require.Len(t, events, 1)
	require.Equal(t, userID, events[0].UserID)
	require.Equal(t, 7, events[0].Result.TotalUpdated)
}

func TestEngine_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())
	engine := newTestEngine(t, st)

	first, err := engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)
	snapshot, _ := st.Get(types.CollectionComments, "c1")

	second, err := engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)
	again, _ := st.Get(types.CollectionComments, "c1")

	require.Equal(t, first.TotalUpdated, second.TotalUpdated)
	require.Equal(t, snapshot.Fields, again.Fields)
}

func TestEngine_AvatarSkipsCollectionsWithoutMapping(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())
	engine := newTestEngine(t, st)

	result, err := engine.SyncAvatar(ctx, userID, "https://cdn.example.com/a.png")
	require.NoError(t, err)

	notifications, ok := result.Outcome(types.CollectionNotifications)
	require.True(t, ok)
	require.True(t, notifications.Success)
	require.True(t, notifications.Skipped)
	require.Equal(t, SkipReasonNoMappedFields, notifications.SkipReason)
	require.Zero(t, st.QueryCalls(types.CollectionNotifications))

	comment, _ := st.Get(types.CollectionComments, "c1")
	require.Equal(t, "https://cdn.example.com/a.png", comment.String("avatar"))
}

func TestEngine_NoMatchingRecordsIsNoop(t *testing.T) {
	st := memory.New()
	defer st.Close()
	engine := newTestEngine(t, st)

	result, err := engine.SyncDisplayName(context.Background(), uuid.New(), "Nobody")
	require.NoError(t, err)
	require.True(t, result.Complete())
	require.Zero(t, result.TotalUpdated)
	for _, outcome := range result.Collections {
		require.True(t, outcome.Success)
		require.Zero(t, outcome.Updated)
	}
	require.Zero(t, st.BulkCalls(types.CollectionPosts))
}

func TestEngine_OptionalCollectionToleratesAccessDenied(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	defer inner.Close()
	userID := uuid.New()
	seedContent(t, inner, userID, uuid.New())

	retries := &recordingRetries{}
	engine, err := NewEngine(Config{
		Store:   store.WithRules(inner, store.DenyWrites(types.CollectionMessages)),
		Retries: retries,
	})
	require.NoError(t, err)

	result, err := engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)
	require.True(t, result.Complete())
	require.Empty(t, result.Errors)

	for _, key := range []string{"messages.sender", "messages.receiver"} {
		outcome, ok := result.Outcome(key)
		require.True(t, ok)
		require.True(t, outcome.Success)
		require.True(t, outcome.Skipped)
		require.Equal(t, SkipReasonAccessDenied, outcome.SkipReason)
		require.Zero(t, outcome.Updated)
	}
	require.Empty(t, retries.items)

	message, _ := inner.Get(types.CollectionMessages, "m1")
	require.Equal(t, "Alice", message.String("sender_name"))
}

func TestEngine_RequiredCollectionFailureIsReported(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	defer inner.Close()
	userID := uuid.New()
	seedContent(t, inner, userID, uuid.New())

	sink := &recordingJournal{}
	retries := &recordingRetries{}
	actor := uuid.New()
	engine, err := NewEngine(Config{
		Store:   store.WithRules(inner, store.DenyWrites(types.CollectionPosts)),
		Journal: sink,
		Retries: retries,
	})
	require.NoError(t, err)

	result, err := engine.SyncDisplayName(ctx, userID, "Alicia", WithActor(actor), WithJournalKind(types.JournalKindRepair))
	require.NoError(t, err)
	require.False(t, result.Complete())
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "posts")
	require.Equal(t, []string{types.CollectionPosts}, result.FailedCollections())

	posts, _ := result.Outcome(types.CollectionPosts)
	require.False(t, posts.Success)
	require.NotEmpty(t, posts.Error)

	comments, _ := result.Outcome(types.CollectionComments)
	require.True(t, comments.Success)
	require.Equal(t, 1, comments.Updated)

	require.Len(t, retries.items, 1)
	require.Equal(t, types.CollectionPosts, retries.items[0].Collection)
	require.Equal(t, "Alicia", retries.items[0].Changes[types.FieldDisplayName])
	require.Equal(t, types.RetryStatusPending, retries.items[0].Status)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, types.JournalKindRepair, entry.Kind)
	require.Equal(t, actor, entry.ActorID)
	require.False(t, entry.Complete)
	require.Equal(t, 1, entry.Failed)
	require.Equal(t, result.TotalUpdated, entry.Updated)
}

func TestEngine_FallsBackToPerRecordWrites(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())

	st.FailBulkWrites(types.CollectionPosts, types.PartialWrite(types.CollectionPosts, errors.New("batch rejected")))
	st.FailWrite(types.CollectionPosts, "p2", errors.New("record locked"))
	engine := newTestEngine(t, st)

	result, err := engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)

	posts, _ := result.Outcome(types.CollectionPosts)
	require.True(t, posts.Success)
	require.Equal(t, 1, posts.Updated)
	require.Equal(t, 1, posts.Failed)
	require.Empty(t, result.Errors)
	require.False(t, result.Complete())

	p1, _ := st.Get(types.CollectionPosts, "p1")
	require.Equal(t, "Alicia", p1.String("user_name"))
	p2, _ := st.Get(types.CollectionPosts, "p2")
	require.Equal(t, "Alice", p2.String("user_name"))
}

func TestEngine_QueuesRetryForRecordFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())

	st.FailBulkWrites(types.CollectionPosts, types.PartialWrite(types.CollectionPosts, errors.New("batch rejected")))
	st.FailWrite(types.CollectionPosts, "p2", errors.New("record locked"))
	retries := &recordingRetries{}
	engine, err := NewEngine(Config{Store: st, Retries: retries})
	require.NoError(t, err)

	_, err = engine.SyncDisplayName(ctx, userID, "Alicia")
	require.NoError(t, err)

	require.Len(t, retries.items, 1)
	require.Equal(t, types.CollectionPosts, retries.items[0].Collection)
	require.Equal(t, "record writes failed", retries.items[0].LastError)
}

func TestEngine_RetryReplaysCurrentCanonicalValue(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())

	profiles := memory.NewProfileRepository(fixedClock{now: stampTime})
	retries := &recordingRetries{}
	engine, err := NewEngine(Config{Store: st, Retries: retries, Clock: fixedClock{now: stampTime}})
	require.NoError(t, err)

	_, err = profiles.UpsertProfile(ctx, types.UserProfile{UserID: userID, DisplayName: "Old"})
	require.NoError(t, err)
	st.FailBulkWrites(types.CollectionPosts, types.AccessDenied("posts locked"))
	result, err := engine.SyncDisplayName(ctx, userID, "Old")
	require.NoError(t, err)
	require.False(t, result.Complete())
	require.Len(t, retries.items, 1)

	st.FailBulkWrites(types.CollectionPosts, nil)
	_, err = profiles.UpsertProfile(ctx, types.UserProfile{UserID: userID, DisplayName: "New"})
	require.NoError(t, err)
	result, err = engine.SyncDisplayName(ctx, userID, "New")
	require.NoError(t, err)
	require.True(t, result.Complete())

	retrier, err := journal.NewRetrier(journal.RetrierConfig{Queue: retries, Replayer: engine, Profiles: profiles})
	require.NoError(t, err)
	report, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)

	for _, id := range []string{"p1", "p2"} {
		post, ok := st.Get(types.CollectionPosts, id)
		require.True(t, ok)
		require.Equal(t, "New", post.String("user_name"))
	}
}

func TestEngine_SyncCollection(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	userID := uuid.New()
	seedContent(t, st, userID, uuid.New())
	engine := newTestEngine(t, st)

	outcome, err := engine.SyncCollection(ctx, userID, types.CollectionLikes, map[types.CanonicalField]string{types.FieldDisplayName: "Alicia"})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Updated)

	_, err = engine.SyncCollection(ctx, userID, "bookmarks", map[types.CanonicalField]string{types.FieldDisplayName: "Alicia"})
	require.True(t, types.IsInvalidArgument(err))
}

func TestValidateCollections(t *testing.T) {
	require.NoError(t, ValidateCollections(types.DefaultCollections()))

	dup := append(types.DefaultCollections(), types.DefaultCollections()[0])
	require.True(t, types.IsInvalidArgument(ValidateCollections(dup)))

	require.True(t, types.IsInvalidArgument(ValidateCollections([]types.CollectionSpec{{Collection: "posts"}})))

	_, err := NewEngine(Config{})
	require.ErrorIs(t, err, types.ErrMissingDocumentStore)
}

var stampTime = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, st types.DocumentStore) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{Store: st, Clock: fixedClock{now: stampTime}})
	require.NoError(t, err)
	return engine
}

func seedContent(t *testing.T, st *memory.Store, userID, other uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	uid, oid := userID.String(), other.String()
	insert := func(collection string, fields map[string]any) {
		_, err := st.Insert(ctx, collection, fields)
		require.NoError(t, err)
	}
	insert(types.CollectionPosts, map[string]any{"id": "p1", "user_id": uid, "user_name": "Alice", "avatar": ""})
	insert(types.CollectionPosts, map[string]any{"id": "p2", "user_id": uid, "user_name": "Alice", "avatar": ""})
	insert(types.CollectionPosts, map[string]any{"id": "p3", "user_id": oid, "user_name": "Bob", "avatar": ""})
	insert(types.CollectionComments, map[string]any{"id": "c1", "post_id": "p3", "user_id": uid, "user_name": "Alice", "avatar": ""})
	insert(types.CollectionLikes, map[string]any{"id": "l1", "post_id": "p3", "user_id": uid, "user_name": "Alice", "avatar": ""})
	insert(types.CollectionMessages, map[string]any{
		"id": "m1", "sender_id": uid, "sender_name": "Alice", "receiver_id": oid, "receiver_name": "Bob",
	})
	insert(types.CollectionMessages, map[string]any{
		"id": "m2", "sender_id": oid, "sender_name": "Bob", "receiver_id": uid, "receiver_name": "Alice",
	})
	insert(types.CollectionNotifications, map[string]any{
		"id": "n1", "recipient_id": oid, "sender_id": uid, "sender_name": "Alice", "type": "like",
	})
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type countingCache struct {
	mu sync.Mutex
	n  int
}

func (c *countingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type recordingJournal struct {
	entries []types.JournalEntry
}

func (r *recordingJournal) Record(_ context.Context, entry types.JournalEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type recordingRetries struct {
	items []types.RetryItem
}

func (r *recordingRetries) Enqueue(_ context.Context, item types.RetryItem) error {
	r.items = append(r.items, item)
	return nil
}

func (r *recordingRetries) Pending(context.Context, int) ([]types.RetryItem, error) {
	return r.items, nil
}

func (r *recordingRetries) Resolve(context.Context, uuid.UUID, types.RetryStatus, string) error {
	return nil
}
