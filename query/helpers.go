package query

import (
	"context"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/snapshot"
)

// SnapshotSource serves bulk collection snapshots to the aggregation readers.
type SnapshotSource interface {
	GetOrLoad(ctx context.Context, collections ...string) (*snapshot.Snapshot, error)
}

func safeClock(clock types.Clock) types.Clock {
	if clock != nil {
		return clock
	}
	return types.SystemClock{}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

func pageBounds(total int, pagination types.Pagination, fallback, max int) (int, int) {
	limit := clampLimit(pagination.Limit, fallback, max)
	offset := pagination.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

func countBy[T any](items []T, key func(T) string) map[string]int {
	out := make(map[string]int, len(items))
	for _, item := range items {
		out[key(item)]++
	}
	return out
}
