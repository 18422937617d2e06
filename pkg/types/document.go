package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Document is a schema-less record read from a collection.
type Document struct {
	ID         string
	Collection string
	Fields     map[string]any
}

// String returns the string value stored under key, or "" when absent.
func (d Document) String(key string) string {
	return AsString(d.Fields[key])
}

// Has reports whether the field is present on the document.
func (d Document) Has(key string) bool {
	_, ok := d.Fields[key]
	return ok
}

// Clone returns a copy with a detached field map.
func (d Document) Clone() Document {
	d.Fields = CloneFields(d.Fields)
	return d
}

// FilterOp enumerates supported comparison operators.
type FilterOp string

const (
	OpEq  FilterOp = "=="
	OpNeq FilterOp = "!="
	OpGt  FilterOp = ">"
	OpGte FilterOp = ">="
	OpLt  FilterOp = "<"
	OpLte FilterOp = "<="
	OpIn  FilterOp = "in"
)

// Filter constrains a query on a single field.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Update is a partial write applied to one document.
type Update struct {
	ID     string
	Fields map[string]any
}

// DocumentStore is the capability set the sync layer consumes from the
// backing store.
type DocumentStore interface {
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Insert(ctx context.Context, collection string, fields map[string]any) (Document, error)
	Write(ctx context.Context, collection, id string, fields map[string]any) error
	// BulkWrite applies every update or none of them.
	BulkWrite(ctx context.Context, collection string, updates []Update) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document), onError func(error)) (func(), error)
}

// CloneFields copies a field map one level deep.
func CloneFields(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// AsString normalizes driver values into strings.
func AsString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// AsInt normalizes numeric driver values.
func AsInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case bool:
		if v {
			return 1
		}
	case []byte:
		return AsInt(string(v))
	case string:
		var n int
		if _, err := fmt.Sscan(strings.TrimSpace(v), &n); err == nil {
			return n
		}
	}
	return 0
}

// AsFloat normalizes numeric driver values.
func AsFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case []byte:
		return AsFloat(string(v))
	case string:
		var f float64
		if _, err := fmt.Sscan(strings.TrimSpace(v), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsBool normalizes boolean driver values; sqlite reports integers.
func AsBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case []byte:
		return AsBool(string(v))
	default:
		return AsInt(v) != 0
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime normalizes timestamp driver values. Unparseable values yield the
// zero time.
func AsTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return v.UTC()
	case []byte:
		return AsTime(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
