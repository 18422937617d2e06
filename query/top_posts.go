package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
)

const (
	defaultTopPostsLimit = 10
	// MaxTopPostsLimit is the largest ranking a caller may request.
	MaxTopPostsLimit = 100
)

// TopPostsInput selects the ranking window.
type TopPostsInput struct {
	// Limit is the number of posts to return: 10 when zero or negative,
	// rejected above MaxTopPostsLimit.
	Limit int
	// Since keeps only posts created at or after the instant.
	Since *time.Time
}

// PostRanking pairs a post with its engagement counts.
type PostRanking struct {
	Post     types.Post
	Likes    int
	Comments int
}

// TopPostsQuery ranks posts by like count, newest first on ties.
type TopPostsQuery struct {
	source SnapshotSource
}

// NewTopPostsQuery constructs the ranking query.
func NewTopPostsQuery(source SnapshotSource) *TopPostsQuery {
	return &TopPostsQuery{source: source}
}

var _ gocommand.Querier[TopPostsInput, []PostRanking] = (*TopPostsQuery)(nil)

// Query implements gocommand.Querier.
func (q *TopPostsQuery) Query(ctx context.Context, input TopPostsInput) ([]PostRanking, error) {
	if q.source == nil {
		return nil, types.ErrMissingSnapshot
	}
	if input.Limit > MaxTopPostsLimit {
		return nil, types.InvalidArgument(fmt.Sprintf("query: top posts limit %d exceeds %d", input.Limit, MaxTopPostsLimit))
	}
	snap, err := q.source.GetOrLoad(ctx, types.CollectionPosts, types.CollectionLikes, types.CollectionComments)
	if err != nil {
		return nil, err
	}
	likes := countBy(snap.Likes(), func(l types.Like) string { return l.PostID })
	comments := countBy(snap.Comments(), func(c types.Comment) string { return c.PostID })

	rankings := make([]PostRanking, 0)
	for _, post := range snap.Posts() {
		if input.Since != nil && post.CreatedAt.Before(*input.Since) {
			continue
		}
		rankings = append(rankings, PostRanking{
			Post:     post,
			Likes:    likes[post.ID],
			Comments: comments[post.ID],
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.Likes != b.Likes {
			return a.Likes > b.Likes
		}
		if !a.Post.CreatedAt.Equal(b.Post.CreatedAt) {
			return a.Post.CreatedAt.After(b.Post.CreatedAt)
		}
		return a.Post.ID < b.Post.ID
	})

	limit := clampLimit(input.Limit, defaultTopPostsLimit, MaxTopPostsLimit)
	if len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings, nil
}
