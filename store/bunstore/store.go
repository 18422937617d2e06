package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store"
	"github.com/uptrace/bun"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config wires the Bun-backed document store.
type Config struct {
	DB     *bun.DB
	Logger types.Logger
	IDGen  types.IDGenerator
	Retry  *RetryPolicy
	// Collections restricts the tables the store will touch. Defaults to the
	// social content collections.
	Collections []string
}

// Store implements types.DocumentStore over plain tables: every collection
// is a table with a text "id" primary key and one column per field.
type Store struct {
	db      *bun.DB
	hub     *store.Hub
	logger  types.Logger
	idGen   types.IDGenerator
	retry   RetryPolicy
	allowed map[string]bool
}

// DefaultCollections lists the tables served when Config.Collections is empty.
func DefaultCollections() []string {
	return []string{
		types.CollectionPosts,
		types.CollectionComments,
		types.CollectionLikes,
		types.CollectionMessages,
		types.CollectionNotifications,
		types.CollectionLocations,
	}
}

// New constructs the store.
func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("bunstore: db required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	collections := cfg.Collections
	if len(collections) == 0 {
		collections = DefaultCollections()
	}
	allowed := make(map[string]bool, len(collections))
	for _, name := range collections {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("bunstore: invalid collection name %q", name)
		}
		allowed[name] = true
	}
	return &Store{
		db:      cfg.DB,
		hub:     store.NewHub(logger),
		logger:  logger,
		idGen:   idGen,
		retry:   retry,
		allowed: allowed,
	}, nil
}

var _ types.DocumentStore = (*Store)(nil)

// DB exposes the underlying database handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Query implements types.DocumentStore. Results are ordered by id.
func (s *Store) Query(ctx context.Context, collection string, filters ...types.Filter) ([]types.Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	for _, filter := range filters {
		if err := checkIdent(filter.Field); err != nil {
			return nil, err
		}
	}
	return withRetry(ctx, s.retry, func(ctx context.Context) ([]types.Document, error) {
		var rows []map[string]interface{}
		q := s.db.NewSelect().TableExpr("?", bun.Ident(collection))
		for _, filter := range filters {
			q = applyFilter(q, filter)
		}
		q = q.OrderExpr("? ASC", bun.Ident("id"))
		if err := q.Scan(ctx, &rows); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return []types.Document{}, nil
			}
			return nil, err
		}
		docs := make([]types.Document, 0, len(rows))
		for _, row := range rows {
			docs = append(docs, toDocument(collection, row))
		}
		return docs, nil
	})
}

// Insert implements types.DocumentStore. An "id" field is honored when set.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (types.Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return types.Document{}, err
	}
	values := make(map[string]interface{}, len(fields)+1)
	for key, value := range fields {
		if err := checkIdent(key); err != nil {
			return types.Document{}, err
		}
		values[key] = value
	}
	id := strings.TrimSpace(types.AsString(values["id"]))
	if id == "" {
		id = s.idGen.UUID().String()
	}
	values["id"] = id

	err := withRetryNoResult(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(collection)).Exec(ctx)
		return err
	})
	if err != nil {
		return types.Document{}, err
	}
	s.hub.Publish(collection)

	out := types.CloneFields(fields)
	if out == nil {
		out = make(map[string]any)
	}
	delete(out, "id")
	return types.Document{ID: id, Collection: collection, Fields: out}, nil
}

// Write implements types.DocumentStore.
func (s *Store) Write(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	query, args, err := updateStatement(collection, id, fields)
	if err != nil {
		return err
	}
	err = withRetryNoResult(ctx, s.retry, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		return expectRow(res, collection, id)
	})
	if err != nil {
		return err
	}
	s.hub.Publish(collection)
	return nil
}

// BulkWrite implements types.DocumentStore. All updates run in one
// transaction; a missing document or any statement failure rolls back the
// whole batch and yields a partial-write error.
func (s *Store) BulkWrite(ctx context.Context, collection string, updates []types.Update) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	type statement struct {
		query string
		args  []any
		id    string
	}
	statements := make([]statement, 0, len(updates))
	for _, update := range updates {
		query, args, err := updateStatement(collection, update.ID, update.Fields)
		if err != nil {
			return err
		}
		statements = append(statements, statement{query: query, args: args, id: update.ID})
	}

	err := withRetryNoResult(ctx, s.retry, func(ctx context.Context) error {
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range statements {
				res, err := tx.ExecContext(ctx, stmt.query, stmt.args...)
				if err != nil {
					return err
				}
				if err := expectRow(res, collection, stmt.id); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return types.PartialWrite(collection, err)
	}
	s.hub.Publish(collection)
	return nil
}

// Delete implements types.DocumentStore. Deleting a missing document is a
// no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.checkCollection(collection); err != nil {
		return err
	}
	err := withRetryNoResult(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM ? WHERE ? = ?", bun.Ident(collection), bun.Ident("id"), id)
		return err
	})
	if err != nil {
		return err
	}
	s.hub.Publish(collection)
	return nil
}

// Subscribe implements types.DocumentStore. Changes made through this store
// instance trigger a reload; writes from other processes are not observed.
func (s *Store) Subscribe(ctx context.Context, collection string, filters []types.Filter, onChange func([]types.Document), onError func(error)) (func(), error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	filters = append([]types.Filter(nil), filters...)
	return s.hub.Subscribe(ctx, collection, func(ctx context.Context) ([]types.Document, error) {
		return s.Query(ctx, collection, filters...)
	}, onChange, onError)
}

// Close stops every live subscription. The database handle is left open.
func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) checkCollection(collection string) error {
	if !s.allowed[collection] {
		return types.InvalidArgument(fmt.Sprintf("bunstore: unknown collection %q", collection))
	}
	return nil
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return types.InvalidArgument(fmt.Sprintf("bunstore: invalid field name %q", name))
	}
	return nil
}

func updateStatement(collection, id string, fields map[string]any) (string, []any, error) {
	if strings.TrimSpace(id) == "" {
		return "", nil, types.InvalidArgument("bunstore: document id required")
	}
	if len(fields) == 0 {
		return "", nil, types.InvalidArgument("bunstore: update requires fields")
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "id" {
			return "", nil, types.InvalidArgument("bunstore: id cannot be updated")
		}
		if err := checkIdent(key); err != nil {
			return "", nil, err
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	args := make([]any, 0, len(keys)*2+3)
	b.WriteString("UPDATE ? SET ")
	args = append(args, bun.Ident(collection))
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("? = ?")
		args = append(args, bun.Ident(key), fields[key])
	}
	b.WriteString(" WHERE ? = ?")
	args = append(args, bun.Ident("id"), id)
	return b.String(), args, nil
}

func expectRow(res sql.Result, collection, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.NotFound(fmt.Sprintf("bunstore: %s/%s not found", collection, id))
	}
	return nil
}

func applyFilter(q *bun.SelectQuery, filter types.Filter) *bun.SelectQuery {
	col := bun.Ident(filter.Field)
	switch store.NormalizeOp(filter.Op) {
	case types.OpNeq:
		return q.Where("? <> ?", col, filter.Value)
	case types.OpGt:
		return q.Where("? > ?", col, filter.Value)
	case types.OpGte:
		return q.Where("? >= ?", col, filter.Value)
	case types.OpLt:
		return q.Where("? < ?", col, filter.Value)
	case types.OpLte:
		return q.Where("? <= ?", col, filter.Value)
	case types.OpIn:
		return q.Where("? IN (?)", col, bun.In(filter.Value))
	default:
		return q.Where("? = ?", col, filter.Value)
	}
}

func toDocument(collection string, row map[string]interface{}) types.Document {
	fields := make(map[string]any, len(row))
	for key, value := range row {
		if raw, ok := value.([]byte); ok {
			value = string(raw)
		}
		fields[key] = value
	}
	id := types.AsString(fields["id"])
	delete(fields, "id")
	return types.Document{ID: id, Collection: collection, Fields: fields}
}
