package profile

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	userID := uuid.New()
	created, err := repo.UpsertProfile(ctx, types.UserProfile{
		UserID:      userID,
		Email:       "alice@example.com",
		DisplayName: "Alice",
		AvatarRef:   "https://cdn.example.com/avatars/alice.png",
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", created.DisplayName)
	require.Equal(t, types.RoleUser, created.Role)
	require.False(t, created.CreatedAt.IsZero())
	require.False(t, created.UpdatedAt.IsZero())

	next := *created
	next.DisplayName = "Alicia"
	next.Bio = "Bio"

	updated, err := repo.UpsertProfile(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "Alicia", updated.DisplayName)
	require.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Second)

	fetched, err := repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, "Alicia", fetched.DisplayName)
	require.Equal(t, "Bio", fetched.Bio)
	require.Equal(t, "alice@example.com", fetched.Email)
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	applyDDL(t, db)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	fetched, err := repo.GetProfile(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, fetched)

	_, err = repo.GetProfile(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, types.ErrUserIDRequired)
}

func TestRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	clock := &stepClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo, err := NewRepository(RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)

	first := uuid.New()
	second := uuid.New()
	_, err = repo.UpsertProfile(ctx, types.UserProfile{UserID: first, DisplayName: "First"})
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)
	_, err = repo.UpsertProfile(ctx, types.UserProfile{UserID: second, DisplayName: "Second", Role: types.RoleAdmin})
	require.NoError(t, err)

	page, err := repo.ListProfiles(ctx, types.ProfileFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Profiles, 2)
	require.Equal(t, "Second", page.Profiles[0].DisplayName)

	admins, err := repo.ListProfiles(ctx, types.ProfileFilter{Role: types.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins.Profiles, 1)
	require.True(t, admins.Profiles[0].IsAdmin())

	require.NoError(t, repo.DeleteProfile(ctx, first))
	require.NoError(t, repo.DeleteProfile(ctx, first))
	fetched, err := repo.GetProfile(ctx, first)
	require.NoError(t, err)
	require.Nil(t, fetched)
}

func TestRepository_CacheWrapsRepository(t *testing.T) {
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db}, WithCache(true))
	require.NoError(t, err)

	_, ok := repo.profileStore.(*repositorycache.CachedRepository[*Record])
	require.True(t, ok)
}

func TestRepository_CacheDisabledKeepsBase(t *testing.T) {
	db := newTestDB(t)
	applyDDL(t, db)

	base := repository.NewRepository(db, repository.ModelHandlers[*Record]{
		NewRecord: func() *Record { return &Record{} },
		GetID:     func(rec *Record) uuid.UUID { return rec.UserID },
		SetID:     func(rec *Record, id uuid.UUID) { rec.UserID = id },
	})
	repo, err := NewRepository(RepositoryConfig{Repository: base}, WithCache(false))
	require.NoError(t, err)

	_, ok := repo.profileStore.(*repositorycache.CachedRepository[*Record])
	require.False(t, ok)
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	content, err := os.ReadFile("../data/sql/migrations/sqlite/00001_user_profiles.up.sql")
	require.NoError(t, err)
	for _, stmt := range splitStatements(string(content)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func splitStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, builder.String())
	}
	return statements
}
