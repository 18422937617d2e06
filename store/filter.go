package store

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Match reports whether the field map satisfies every filter.
func Match(fields map[string]any, filters []types.Filter) bool {
	for _, filter := range filters {
		if !matchOne(fields[filter.Field], filter) {
			return false
		}
	}
	return true
}

// ValidateFilters rejects filters with an empty field or unknown operator.
func ValidateFilters(filters []types.Filter) error {
	for _, filter := range filters {
		if strings.TrimSpace(filter.Field) == "" {
			return types.InvalidArgument("store: filter field required")
		}
		switch NormalizeOp(filter.Op) {
		case types.OpEq, types.OpNeq, types.OpGt, types.OpGte, types.OpLt, types.OpLte, types.OpIn:
		default:
			return types.InvalidArgument("store: unsupported filter operator " + string(filter.Op))
		}
	}
	return nil
}

// NormalizeOp maps operator aliases ("=", "eq", "gte", ...) to their canonical form.
func NormalizeOp(op types.FilterOp) types.FilterOp {
	switch strings.ToLower(strings.TrimSpace(string(op))) {
	case "", "=", "==", "eq":
		return types.OpEq
	case "!=", "<>", "neq":
		return types.OpNeq
	case ">", "gt":
		return types.OpGt
	case ">=", "gte":
		return types.OpGte
	case "<", "lt":
		return types.OpLt
	case "<=", "lte":
		return types.OpLte
	case "in":
		return types.OpIn
	}
	return op
}

func matchOne(value any, filter types.Filter) bool {
	switch NormalizeOp(filter.Op) {
	case types.OpEq:
		return compare(value, filter.Value) == 0
	case types.OpNeq:
		return compare(value, filter.Value) != 0
	case types.OpGt:
		return value != nil && compare(value, filter.Value) > 0
	case types.OpGte:
		return value != nil && compare(value, filter.Value) >= 0
	case types.OpLt:
		return value != nil && compare(value, filter.Value) < 0
	case types.OpLte:
		return value != nil && compare(value, filter.Value) <= 0
	case types.OpIn:
		for _, candidate := range expand(filter.Value) {
			if compare(value, candidate) == 0 {
				return true
			}
		}
	}
	return false
}

// compare orders two driver values: numerically when both are numbers,
// chronologically when both are timestamps, otherwise as strings.
func compare(a, b any) int {
	if af, ok := types.AsFloat(a); ok && isNumber(a) {
		if bf, ok := types.AsFloat(b); ok && isNumber(b) {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if isTime(a) || isTime(b) {
		at, bt := types.AsTime(a), types.AsTime(b)
		if !at.IsZero() && !bt.IsZero() {
			return at.Compare(bt)
		}
	}
	return strings.Compare(types.AsString(a), types.AsString(b))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func isTime(v any) bool {
	switch v.(type) {
	case interface{ UnixNano() int64 }:
		return true
	}
	return false
}

func expand(value any) []any {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}
