package seed

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/audit"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store/memory"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var seedTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSeeder_RunCreatesConsistentContent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t.Cleanup(st.Close)
	clock := fixedClock{now: seedTime}
	profiles := memory.NewProfileRepository(clock)

	seeder, err := New(Config{Store: st, Profiles: profiles, Seed: 42, Clock: clock})
	require.NoError(t, err)

	summary, err := seeder.Run(ctx, Options{Users: 4, PostsPerUser: 2, CommentsPerPost: 1, LikesPerPost: 2, MessagesPerUser: 1})
	require.NoError(t, err)
	require.Equal(t, 4, summary.Users)
	require.Equal(t, 8, summary.Posts)
	require.Equal(t, 8, summary.Comments)
	require.Equal(t, 4, summary.Messages)
	require.Equal(t, 4, summary.Locations)
	require.Zero(t, summary.Stale)
	require.Len(t, summary.UserIDs, 4)

	posts, err := st.Query(ctx, types.CollectionPosts)
	require.NoError(t, err)
	require.Len(t, posts, 8)
	for _, doc := range posts {
		created := types.AsTime(doc.Fields["created_at"])
		require.False(t, created.After(seedTime))
		require.False(t, created.Before(seedTime.Add(-DefaultOptions().Window)))
	}

	auditor, err := audit.NewAuditor(audit.Config{Store: st, Profiles: profiles, Clock: clock})
	require.NoError(t, err)
	for _, userID := range summary.UserIDs {
		report, err := auditor.Audit(ctx, userID)
		require.NoError(t, err)
		require.True(t, report.Consistent(), "user %s drifted", userID)
	}
}

func TestSeeder_StaleRatioLeavesDrift(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t.Cleanup(st.Close)
	clock := fixedClock{now: seedTime}
	profiles := memory.NewProfileRepository(clock)

	seeder, err := New(Config{Store: st, Profiles: profiles, Seed: 7, Clock: clock})
	require.NoError(t, err)

	summary, err := seeder.Run(ctx, Options{Users: 2, PostsPerUser: 1, StaleRatio: 1})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Stale)

	auditor, err := audit.NewAuditor(audit.Config{Store: st, Profiles: profiles, Clock: clock})
	require.NoError(t, err)
	mismatches := 0
	for _, userID := range summary.UserIDs {
		report, err := auditor.Audit(ctx, userID)
		require.NoError(t, err)
		mismatches += report.TotalMismatches()
	}
	require.Equal(t, 2, mismatches)
}

func TestSeeder_Requirements(t *testing.T) {
	_, err := New(Config{Profiles: memory.NewProfileRepository(nil)})
	require.ErrorIs(t, err, types.ErrMissingDocumentStore)

	seeder, err := New(Config{Store: memory.New(), Profiles: memory.NewProfileRepository(nil)})
	require.NoError(t, err)
	_, err = seeder.Run(context.Background(), Options{})
	require.True(t, types.IsInvalidArgument(err))
}
