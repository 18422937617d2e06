package journal

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := newTestRepository(t, clock)
	userID := uuid.New()

	require.NoError(t, repo.Record(ctx, types.JournalEntry{
		UserID:   userID,
		Kind:     types.JournalKindSync,
		Updated:  7,
		Complete: true,
		Data:     map[string]any{"displayName": "Alicia"},
	}))
	require.NoError(t, repo.Record(ctx, types.JournalEntry{
		UserID: userID,
		Kind:   types.JournalKindRepair,
		Failed: 1,
	}))
	require.NoError(t, repo.Record(ctx, types.JournalEntry{
		UserID: uuid.New(),
		Kind:   types.JournalKindSync,
	}))

	page, err := repo.ListJournal(ctx, types.JournalFilter{UserID: userID, Pagination: types.Pagination{Limit: 1}})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.True(t, page.HasMore)
	require.Len(t, page.Entries, 1)
	require.Equal(t, types.JournalKindRepair, page.Entries[0].Kind)

	page, err = repo.ListJournal(ctx, types.JournalFilter{
		UserID: userID,
		Kinds:  []types.JournalKind{types.JournalKindSync},
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	entry := page.Entries[0]
	require.Equal(t, 7, entry.Updated)
	require.True(t, entry.Complete)
	require.Equal(t, "Alicia", entry.Data["displayName"])
	require.NotEqual(t, uuid.Nil, entry.ID)
	require.False(t, entry.OccurredAt.IsZero())
}

func TestRepository_RecordMasksSensitiveData(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)
	userID := uuid.New()

	require.NoError(t, repo.Record(ctx, types.JournalEntry{
		UserID: userID,
		Kind:   types.JournalKindSync,
		Data:   map[string]any{"token": "abcd1234", "displayName": "Bob"},
	}))

	page, err := repo.ListJournal(ctx, types.JournalFilter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.NotEqual(t, "abcd1234", page.Entries[0].Data["token"])
	require.Equal(t, "Bob", page.Entries[0].Data["displayName"])
}

func TestRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Record(ctx, types.JournalEntry{UserID: uuid.New(), Kind: types.JournalKindSync}))
	}
	require.NoError(t, repo.Record(ctx, types.JournalEntry{UserID: uuid.New(), Kind: types.JournalKindAudit}))

	stats, err := repo.JournalStats(ctx, types.JournalFilter{})
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 3, stats.ByKind[types.JournalKindSync])
	require.Equal(t, 1, stats.ByKind[types.JournalKindAudit])
}

func TestRepository_RetryQueue(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo := newTestRepository(t, clock)
	userID := uuid.New()

	require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
		UserID:     userID,
		Collection: "comments",
		Changes:    map[types.CanonicalField]string{types.FieldDisplayName: "Alicia"},
		LastError:  "store unavailable",
	}))
	require.NoError(t, repo.Enqueue(ctx, types.RetryItem{
		UserID:     userID,
		Collection: "likes",
		Changes:    map[types.CanonicalField]string{types.FieldAvatarRef: "avatars/u1.png"},
	}))

	pending, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "comments", pending[0].Collection)
	require.Equal(t, "Alicia", pending[0].Changes[types.FieldDisplayName])
	require.Equal(t, types.RetryStatusPending, pending[0].Status)

	require.NoError(t, repo.Resolve(ctx, pending[0].ID, types.RetryStatusDone, ""))
	require.NoError(t, repo.Resolve(ctx, pending[1].ID, types.RetryStatusPending, "still failing"))

	pending, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "likes", pending[0].Collection)
	require.Equal(t, 1, pending[0].Attempts)
	require.Equal(t, "still failing", pending[0].LastError)

	err = repo.Resolve(ctx, uuid.New(), types.RetryStatusDone, "")
	require.True(t, types.IsNotFound(err))

	err = repo.Enqueue(ctx, types.RetryItem{Collection: "likes"})
	require.ErrorIs(t, err, types.ErrUserIDRequired)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRepository(t *testing.T, clock types.Clock) *Repository {
	t.Helper()
	db := newTestJournalDB(t)
	repo, err := NewRepository(RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)
	return repo
}

func newTestJournalDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	payload, err := os.ReadFile("../data/sql/migrations/sqlite/00003_sync_journal.up.sql")
	require.NoError(t, err)
	for _, stmt := range strings.Split(string(payload), "--bun:split") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err)
	}
	return db
}
