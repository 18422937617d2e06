package query

import (
	"context"
	"sort"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
)

const (
	defaultRecentUsersLimit   = 5
	maxRecentUsersLimit       = 50
	defaultInventoryLimit     = 50
	maxInventoryLimit         = 200
	defaultTopAuthorsLimit    = 5
	maxTopAuthorsLimit        = 50
	defaultActivitySeriesDays = 7
	maxActivitySeriesDays     = 90
)

// DashboardStatsInput is reserved for future filters.
type DashboardStatsInput struct{}

// DashboardStats holds headline totals.
type DashboardStats struct {
	Users      int
	Admins     int
	Posts      int
	Comments   int
	Likes      int
	CapturedAt time.Time
}

// DashboardStatsQuery counts users and content.
type DashboardStatsQuery struct {
	source SnapshotSource
}

// NewDashboardStatsQuery constructs the totals query.
func NewDashboardStatsQuery(source SnapshotSource) *DashboardStatsQuery {
	return &DashboardStatsQuery{source: source}
}

var _ gocommand.Querier[DashboardStatsInput, DashboardStats] = (*DashboardStatsQuery)(nil)

// Query implements gocommand.Querier.
func (q *DashboardStatsQuery) Query(ctx context.Context, _ DashboardStatsInput) (DashboardStats, error) {
	if q.source == nil {
		return DashboardStats{}, types.ErrMissingSnapshot
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionUsers, types.CollectionPosts, types.CollectionComments, types.CollectionLikes)
	if err != nil {
		return DashboardStats{}, err
	}
	stats := DashboardStats{
		Posts:      len(snap.Documents(types.CollectionPosts)),
		Comments:   len(snap.Documents(types.CollectionComments)),
		Likes:      len(snap.Documents(types.CollectionLikes)),
		CapturedAt: snap.CapturedAt(),
	}
	for _, user := range snap.Users() {
		stats.Users++
		if user.IsAdmin() {
			stats.Admins++
		}
	}
	return stats, nil
}

// RecentUsersInput bounds the listing.
type RecentUsersInput struct {
	Limit int
}

// RecentUsersQuery lists the newest profiles.
type RecentUsersQuery struct {
	source SnapshotSource
}

// NewRecentUsersQuery constructs the query.
func NewRecentUsersQuery(source SnapshotSource) *RecentUsersQuery {
	return &RecentUsersQuery{source: source}
}

var _ gocommand.Querier[RecentUsersInput, []types.UserProfile] = (*RecentUsersQuery)(nil)

// Query implements gocommand.Querier.
func (q *RecentUsersQuery) Query(ctx context.Context, input RecentUsersInput) ([]types.UserProfile, error) {
	if q.source == nil {
		return nil, types.ErrMissingSnapshot
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionUsers)
	if err != nil {
		return nil, err
	}
	users := snap.Users()
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].UserID.String() < users[j].UserID.String()
	})
	limit := clampLimit(input.Limit, defaultRecentUsersLimit, maxRecentUsersLimit)
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// PostInventoryInput pages through every post.
type PostInventoryInput struct {
	AuthorID   string
	Pagination types.Pagination
}

// PostInventoryPage lists posts newest first with engagement counts.
type PostInventoryPage struct {
	Posts      []PostRanking
	Total      int
	NextOffset int
	HasMore    bool
}

// PostInventoryQuery backs the admin post table.
type PostInventoryQuery struct {
	source SnapshotSource
}

// NewPostInventoryQuery constructs the query.
func NewPostInventoryQuery(source SnapshotSource) *PostInventoryQuery {
	return &PostInventoryQuery{source: source}
}

var _ gocommand.Querier[PostInventoryInput, PostInventoryPage] = (*PostInventoryQuery)(nil)

// Query implements gocommand.Querier.
func (q *PostInventoryQuery) Query(ctx context.Context, input PostInventoryInput) (PostInventoryPage, error) {
	if q.source == nil {
		return PostInventoryPage{}, types.ErrMissingSnapshot
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionPosts, types.CollectionLikes, types.CollectionComments)
	if err != nil {
		return PostInventoryPage{}, err
	}
	likes := countBy(snap.Likes(), func(l types.Like) string { return l.PostID })
	comments := countBy(snap.Comments(), func(c types.Comment) string { return c.PostID })

	rows := make([]PostRanking, 0)
	for _, post := range snap.Posts() {
		if input.AuthorID != "" && post.UserID != input.AuthorID {
			continue
		}
		rows = append(rows, PostRanking{Post: post, Likes: likes[post.ID], Comments: comments[post.ID]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Post.CreatedAt.Equal(rows[j].Post.CreatedAt) {
			return rows[i].Post.CreatedAt.After(rows[j].Post.CreatedAt)
		}
		return rows[i].Post.ID < rows[j].Post.ID
	})

	start, end := pageBounds(len(rows), input.Pagination, defaultInventoryLimit, maxInventoryLimit)
	page := PostInventoryPage{
		Posts:      rows[start:end],
		Total:      len(rows),
		NextOffset: end,
		HasMore:    end < len(rows),
	}
	return page, nil
}

// ActivitySeriesInput selects how many trailing days to report.
type ActivitySeriesInput struct {
	Days int
}

// ActivityDay counts content created on one UTC day.
type ActivityDay struct {
	Date     time.Time
	Posts    int
	Comments int
	Likes    int
}

// ActivitySeriesQuery reports daily activity ending today.
type ActivitySeriesQuery struct {
	source SnapshotSource
	clock  types.Clock
}

// NewActivitySeriesQuery constructs the query.
func NewActivitySeriesQuery(source SnapshotSource, clock types.Clock) *ActivitySeriesQuery {
	return &ActivitySeriesQuery{source: source, clock: safeClock(clock)}
}

var _ gocommand.Querier[ActivitySeriesInput, []ActivityDay] = (*ActivitySeriesQuery)(nil)

// Query implements gocommand.Querier. Days are returned oldest first.
func (q *ActivitySeriesQuery) Query(ctx context.Context, input ActivitySeriesInput) ([]ActivityDay, error) {
	if q.source == nil {
		return nil, types.ErrMissingSnapshot
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionPosts, types.CollectionComments, types.CollectionLikes)
	if err != nil {
		return nil, err
	}
	days := clampLimit(input.Days, defaultActivitySeriesDays, maxActivitySeriesDays)
	today := truncateDay(q.clock.Now())
	first := today.AddDate(0, 0, -(days - 1))

	series := make([]ActivityDay, days)
	for i := range series {
		series[i].Date = first.AddDate(0, 0, i)
	}
	bucket := func(at time.Time) *ActivityDay {
		if at.IsZero() {
			return nil
		}
		day := truncateDay(at)
		if day.Before(first) || day.After(today) {
			return nil
		}
		idx := int(day.Sub(first).Hours() / 24)
		return &series[idx]
	}
	for _, post := range snap.Posts() {
		if day := bucket(post.CreatedAt); day != nil {
			day.Posts++
		}
	}
	for _, comment := range snap.Comments() {
		if day := bucket(comment.CreatedAt); day != nil {
			day.Comments++
		}
	}
	for _, like := range snap.Likes() {
		if day := bucket(like.CreatedAt); day != nil {
			day.Likes++
		}
	}
	return series, nil
}

// TopAuthorsInput bounds the listing.
type TopAuthorsInput struct {
	Limit int
}

// AuthorStat summarizes an author's output.
type AuthorStat struct {
	UserID        string
	DisplayName   string
	Posts         int
	LikesReceived int
}

// TopAuthorsQuery ranks authors by post count, then likes received.
type TopAuthorsQuery struct {
	source SnapshotSource
}

// NewTopAuthorsQuery constructs the query.
func NewTopAuthorsQuery(source SnapshotSource) *TopAuthorsQuery {
	return &TopAuthorsQuery{source: source}
}

var _ gocommand.Querier[TopAuthorsInput, []AuthorStat] = (*TopAuthorsQuery)(nil)

// Query implements gocommand.Querier.
func (q *TopAuthorsQuery) Query(ctx context.Context, input TopAuthorsInput) ([]AuthorStat, error) {
	if q.source == nil {
		return nil, types.ErrMissingSnapshot
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionPosts, types.CollectionLikes)
	if err != nil {
		return nil, err
	}
	likes := countBy(snap.Likes(), func(l types.Like) string { return l.PostID })

	byAuthor := make(map[string]*AuthorStat)
	order := make([]string, 0)
	for _, post := range snap.Posts() {
		stat, ok := byAuthor[post.UserID]
		if !ok {
			stat = &AuthorStat{UserID: post.UserID, DisplayName: post.UserName}
			byAuthor[post.UserID] = stat
			order = append(order, post.UserID)
		}
		stat.Posts++
		stat.LikesReceived += likes[post.ID]
	}
	out := make([]AuthorStat, 0, len(order))
	for _, id := range order {
		out = append(out, *byAuthor[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Posts != out[j].Posts {
			return out[i].Posts > out[j].Posts
		}
		if out[i].LikesReceived != out[j].LikesReceived {
			return out[i].LikesReceived > out[j].LikesReceived
		}
		return out[i].UserID < out[j].UserID
	})
	limit := clampLimit(input.Limit, defaultTopAuthorsLimit, maxTopAuthorsLimit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
