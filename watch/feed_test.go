package watch

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store"
	"github.com/goliatone/go-profilesync/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNotificationFeed_LiveListAndUnread(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	owner := uuid.New()
	seedNotification(t, st, "n1", owner, baseTime, false)
	seedNotification(t, st, "n2", owner, baseTime.Add(time.Minute), true)
	seedNotification(t, st, "n3", uuid.New(), baseTime, false)

	feed, err := NewNotificationFeed(Config{Store: st})
	require.NoError(t, err)
	defer feed.Stop()
	require.NoError(t, feed.Start(ctx, owner))

	require.Eventually(t, func() bool { return feed.State().Listening }, 2*time.Second, 5*time.Millisecond)
	state := feed.State()
	require.Len(t, state.Notifications, 2)
	require.Equal(t, "n2", state.Notifications[0].ID, "newest first")
	require.Equal(t, 1, state.Unread)

	require.NoError(t, feed.MarkRead(ctx, "n1"))
	require.Eventually(t, func() bool { return feed.UnreadCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Starting again for the same user keeps the subscription.
	require.NoError(t, feed.Start(ctx, owner))
	require.True(t, feed.State().Listening)
}

func TestNotificationFeed_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	owner := uuid.New()
	for _, id := range []string{"n1", "n2", "n3"} {
		seedNotification(t, st, id, owner, baseTime, false)
	}

	feed, err := NewNotificationFeed(Config{Store: st})
	require.NoError(t, err)
	defer feed.Stop()
	require.NoError(t, feed.Start(ctx, owner))
	require.Eventually(t, func() bool { return feed.UnreadCount() == 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, feed.MarkAllRead(ctx))
	require.Eventually(t, func() bool { return feed.UnreadCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, st.BulkCalls(types.CollectionNotifications))

	require.NoError(t, feed.MarkAllRead(ctx))
	require.Equal(t, 1, st.BulkCalls(types.CollectionNotifications), "nothing left to mark")
}

func TestNotificationFeed_PermissionDenied(t *testing.T) {
	st := memory.New()
	defer st.Close()
	guarded := store.WithRules(st, store.DenyReads(types.CollectionNotifications))

	var updates []State
	feed, err := NewNotificationFeed(Config{Store: guarded, OnUpdate: func(s State) { updates = append(updates, s) }})
	require.NoError(t, err)
	require.NoError(t, feed.Start(context.Background(), uuid.New()))

	state := feed.State()
	require.True(t, state.PermissionDenied)
	require.False(t, state.Listening)
	require.NotEmpty(t, state.Err)
	require.Len(t, updates, 1)
}

func TestNotificationFeed_StopAndSwitchUser(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	first, second := uuid.New(), uuid.New()
	seedNotification(t, st, "n1", first, baseTime, false)
	seedNotification(t, st, "n2", second, baseTime, false)
	seedNotification(t, st, "n3", second, baseTime.Add(time.Second), false)

	feed, err := NewNotificationFeed(Config{Store: st})
	require.NoError(t, err)
	require.NoError(t, feed.Start(ctx, first))
	require.Eventually(t, func() bool { return feed.UnreadCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, feed.Start(ctx, second))
	require.Eventually(t, func() bool {
		s := feed.State()
		return s.UserID == second && len(s.Notifications) == 2
	}, 2*time.Second, 5*time.Millisecond)

	feed.Stop()
	require.False(t, feed.State().Listening)
	require.Len(t, feed.State().Notifications, 2)

	feed.Reset()
	require.Empty(t, feed.State().Notifications)
	require.Equal(t, uuid.Nil, feed.State().UserID)

	require.ErrorIs(t, feed.Start(ctx, uuid.Nil), types.ErrUserIDRequired)
}

func TestNotificationFeed_NotifyLike(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()
	profiles := memory.NewProfileRepository(nil)
	owner, liker := uuid.New(), uuid.New()
	_, err := profiles.UpsertProfile(ctx, types.UserProfile{UserID: liker, DisplayName: "Bob"})
	require.NoError(t, err)

	feed, err := NewNotificationFeed(Config{Store: st, Profiles: profiles, Clock: fixedClock{now: baseTime}})
	require.NoError(t, err)

	require.NoError(t, feed.NotifyLike(ctx, "p1", owner, owner))
	docs, err := st.Query(ctx, types.CollectionNotifications)
	require.NoError(t, err)
	require.Empty(t, docs, "self-likes do not notify")

	require.NoError(t, feed.NotifyLike(ctx, "p1", owner, liker))
	docs, err = st.Query(ctx, types.CollectionNotifications)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	n := types.NotificationFromDocument(docs[0])
	require.Equal(t, owner.String(), n.RecipientID)
	require.Equal(t, "Bob", n.SenderName)
	require.Equal(t, NotificationTypeLike, n.Type)
	require.Equal(t, "Bob liked your post", n.Message)
	require.False(t, n.Read)
	require.Equal(t, baseTime, n.CreatedAt)

	err = feed.NotifyLike(ctx, "", owner, liker)
	require.True(t, types.IsInvalidArgument(err))
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func seedNotification(t *testing.T, st *memory.Store, id string, recipient uuid.UUID, createdAt time.Time, read bool) {
	t.Helper()
	_, err := st.Insert(context.Background(), types.CollectionNotifications, map[string]any{
		"id":           id,
		"recipient_id": recipient.String(),
		"sender_id":    uuid.NewString(),
		"sender_name":  "Someone",
		"type":         NotificationTypeLike,
		"read":         read,
		"created_at":   createdAt,
	})
	require.NoError(t, err)
}
