package store

import (
	"context"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Operation classifies store calls for access rules.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationWrite  Operation = "write"
	OperationDelete Operation = "delete"
)

// Rule returns a non-nil error to reject the operation.
type Rule func(ctx context.Context, op Operation, collection string) error

// DenyWrites rejects writes (insert, write, bulk write) to the collections.
func DenyWrites(collections ...string) Rule {
	denied := toSet(collections)
	return func(_ context.Context, op Operation, collection string) error {
		if op == OperationWrite && denied[collection] {
			return types.AccessDenied("store: write access denied to " + collection)
		}
		return nil
	}
}

// DenyReads rejects queries and subscriptions on the collections.
func DenyReads(collections ...string) Rule {
	denied := toSet(collections)
	return func(_ context.Context, op Operation, collection string) error {
		if op == OperationRead && denied[collection] {
			return types.AccessDenied("store: read access denied to " + collection)
		}
		return nil
	}
}

// Guarded applies access rules in front of another store.
type Guarded struct {
	inner types.DocumentStore
	rules []Rule
}

// WithRules wraps inner with the supplied rules. Nil rules are ignored.
func WithRules(inner types.DocumentStore, rules ...Rule) *Guarded {
	filtered := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil {
			filtered = append(filtered, rule)
		}
	}
	return &Guarded{inner: inner, rules: filtered}
}

var _ types.DocumentStore = (*Guarded)(nil)

func (g *Guarded) check(ctx context.Context, op Operation, collection string) error {
	for _, rule := range g.rules {
		if err := rule(ctx, op, collection); err != nil {
			return err
		}
	}
	return nil
}

// Query implements types.DocumentStore.
func (g *Guarded) Query(ctx context.Context, collection string, filters ...types.Filter) ([]types.Document, error) {
	if err := g.check(ctx, OperationRead, collection); err != nil {
		return nil, err
	}
	return g.inner.Query(ctx, collection, filters...)
}

// Insert implements types.DocumentStore.
func (g *Guarded) Insert(ctx context.Context, collection string, fields map[string]any) (types.Document, error) {
	if err := g.check(ctx, OperationWrite, collection); err != nil {
		return types.Document{}, err
	}
	return g.inner.Insert(ctx, collection, fields)
}

// Write implements types.DocumentStore.
func (g *Guarded) Write(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := g.check(ctx, OperationWrite, collection); err != nil {
		return err
	}
	return g.inner.Write(ctx, collection, id, fields)
}

// BulkWrite implements types.DocumentStore.
func (g *Guarded) BulkWrite(ctx context.Context, collection string, updates []types.Update) error {
	if err := g.check(ctx, OperationWrite, collection); err != nil {
		return err
	}
	return g.inner.BulkWrite(ctx, collection, updates)
}

// Delete implements types.DocumentStore.
func (g *Guarded) Delete(ctx context.Context, collection, id string) error {
	if err := g.check(ctx, OperationDelete, collection); err != nil {
		return err
	}
	return g.inner.Delete(ctx, collection, id)
}

// Subscribe implements types.DocumentStore. A denied subscription reports
// the error through onError and returns a no-op unsubscribe.
func (g *Guarded) Subscribe(ctx context.Context, collection string, filters []types.Filter, onChange func([]types.Document), onError func(error)) (func(), error) {
	if err := g.check(ctx, OperationRead, collection); err != nil {
		if onError != nil {
			onError(err)
		}
		return func() {}, nil
	}
	return g.inner.Subscribe(ctx, collection, filters, onChange, onError)
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = true
		}
	}
	return out
}
