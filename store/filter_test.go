package store

import (
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	fields := map[string]any{
		"user_id":    "u1",
		"likes":      int64(4),
		"created_at": created,
		"read":       false,
	}

	cases := []struct {
		name    string
		filters []types.Filter
		want    bool
	}{
		{"no filters", nil, true},
		{"equality", []types.Filter{types.Where("user_id", "u1")}, true},
		{"equality miss", []types.Filter{types.Where("user_id", "u2")}, false},
		{"alias operator", []types.Filter{{Field: "user_id", Op: "eq", Value: "u1"}}, true},
		{"not equal", []types.Filter{{Field: "user_id", Op: types.OpNeq, Value: "u2"}}, true},
		{"numeric greater", []types.Filter{{Field: "likes", Op: types.OpGt, Value: 3}}, true},
		{"numeric not greater", []types.Filter{{Field: "likes", Op: types.OpGt, Value: 10}}, false},
		{"time since", []types.Filter{{Field: "created_at", Op: types.OpGte, Value: created.Add(-time.Hour)}}, true},
		{"time before", []types.Filter{{Field: "created_at", Op: types.OpLt, Value: created.Add(-time.Hour)}}, false},
		{"in list", []types.Filter{{Field: "user_id", Op: types.OpIn, Value: []string{"u3", "u1"}}}, true},
		{"in list miss", []types.Filter{{Field: "user_id", Op: types.OpIn, Value: []string{"u3"}}}, false},
		{"missing field ordered", []types.Filter{{Field: "score", Op: types.OpGt, Value: 0}}, false},
		{"conjunction", []types.Filter{types.Where("user_id", "u1"), {Field: "likes", Op: types.OpLte, Value: 4}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Match(fields, tc.filters))
		})
	}
}

func TestValidateFilters(t *testing.T) {
	require.NoError(t, ValidateFilters([]types.Filter{types.Where("user_id", "u1")}))

	err := ValidateFilters([]types.Filter{{Field: " ", Op: types.OpEq}})
	require.True(t, types.IsInvalidArgument(err))

	err = ValidateFilters([]types.Filter{{Field: "user_id", Op: "like"}})
	require.True(t, types.IsInvalidArgument(err))
}
