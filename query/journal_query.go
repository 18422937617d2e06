package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 200
)

// JournalQuery lists sync journal entries.
type JournalQuery struct {
	repo   types.JournalRepository
	logger types.Logger
}

// NewJournalQuery constructs the journal listing query.
func NewJournalQuery(repo types.JournalRepository, logger types.Logger) *JournalQuery {
	return &JournalQuery{repo: repo, logger: safeLogger(logger)}
}

var _ gocommand.Querier[types.JournalFilter, types.JournalPage] = (*JournalQuery)(nil)

// Query normalizes pagination and delegates to the repository.
func (q *JournalQuery) Query(ctx context.Context, filter types.JournalFilter) (types.JournalPage, error) {
	if q.repo == nil {
		return types.JournalPage{}, types.ErrMissingJournal
	}
	filter.Pagination.Limit = clampLimit(filter.Pagination.Limit, defaultJournalLimit, maxJournalLimit)
	if filter.Pagination.Offset < 0 {
		filter.Pagination.Offset = 0
	}
	page, err := q.repo.ListJournal(ctx, filter)
	if err != nil {
		q.logger.Error("journal listing failed", err)
		return types.JournalPage{}, err
	}
	return page, nil
}

// JournalStatsQuery aggregates journal entries by kind.
type JournalStatsQuery struct {
	repo types.JournalRepository
}

// NewJournalStatsQuery constructs the stats query.
func NewJournalStatsQuery(repo types.JournalRepository) *JournalStatsQuery {
	return &JournalStatsQuery{repo: repo}
}

var _ gocommand.Querier[types.JournalFilter, types.JournalStats] = (*JournalStatsQuery)(nil)

// Query implements gocommand.Querier.
func (q *JournalStatsQuery) Query(ctx context.Context, filter types.JournalFilter) (types.JournalStats, error) {
	if q.repo == nil {
		return types.JournalStats{}, types.ErrMissingJournal
	}
	return q.repo.JournalStats(ctx, filter)
}
