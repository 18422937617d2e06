package query

import (
	"context"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// ProfileQueryInput identifies the profile to load.
type ProfileQueryInput struct {
	UserID uuid.UUID
}

// ProfileQuery fetches canonical profiles.
type ProfileQuery struct {
	repo types.ProfileRepository
}

// NewProfileQuery constructs the profile query helper.
func NewProfileQuery(repo types.ProfileRepository) *ProfileQuery {
	return &ProfileQuery{repo: repo}
}

var _ gocommand.Querier[ProfileQueryInput, *types.UserProfile] = (*ProfileQuery)(nil)

// Query returns the profile or a not-found error.
func (q *ProfileQuery) Query(ctx context.Context, input ProfileQueryInput) (*types.UserProfile, error) {
	if q.repo == nil {
		return nil, types.ErrMissingProfileRepository
	}
	if input.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	profile, err := q.repo.GetProfile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, types.NotFound(fmt.Sprintf("query: profile %s not found", input.UserID))
	}
	return profile, nil
}
