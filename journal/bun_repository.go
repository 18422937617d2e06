package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-profilesync/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RepositoryConfig wires the Bun-backed journal and retry queue.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*EntryRecord]
	Retries    repository.Repository[*RetryRecord]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Masker     *masker.Masker
}

type entryStore interface {
	repository.Repository[*EntryRecord]
}

// Repository persists journal entries and pending retries.
type Repository struct {
	entryStore
	retries repository.Repository[*RetryRecord]
	db      *bun.DB
	clock   types.Clock
	idGen   types.IDGenerator
	mask    *masker.Masker
}

// NewRepository constructs a repository that implements JournalRepository
// and RetryQueue.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("journal: db or repository required")
	}
	entries := cfg.Repository
	if entries == nil {
		entries = repository.NewRepository(cfg.DB, repository.ModelHandlers[*EntryRecord]{
			NewRecord: func() *EntryRecord { return &EntryRecord{} },
			GetID: func(rec *EntryRecord) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *EntryRecord, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
				}
			},
		})
	}
	retries := cfg.Retries
	if retries == nil && cfg.DB != nil {
		retries = repository.NewRepository(cfg.DB, repository.ModelHandlers[*RetryRecord]{
			NewRecord: func() *RetryRecord { return &RetryRecord{} },
			GetID: func(rec *RetryRecord) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *RetryRecord, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	mask := cfg.Masker
	if mask == nil {
		mask = DefaultMasker()
	}
	return &Repository{
		entryStore: entries,
		retries:    retries,
		db:         cfg.DB,
		clock:      clock,
		idGen:      idGen,
		mask:       mask,
	}, nil
}

var (
	_ types.JournalSink       = (*Repository)(nil)
	_ types.JournalRepository = (*Repository)(nil)
	_ types.RetryQueue        = (*Repository)(nil)
)

// Record persists a journal entry. Data payloads are masked before storage.
func (r *Repository) Record(ctx context.Context, entry types.JournalEntry) error {
	entry = SanitizeEntry(r.mask, entry)
	rec := toEntryRecord(entry)
	if rec.ID == uuid.Nil {
		rec.ID = r.idGen.UUID()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = r.clock.Now()
	}
	if strings.TrimSpace(rec.Kind) == "" {
		rec.Kind = string(types.JournalKindSync)
	}
	_, err := r.Create(ctx, rec)
	return err
}

// ListJournal returns a newest-first page of journal entries.
func (r *Repository) ListJournal(ctx context.Context, filter types.JournalFilter) (types.JournalPage, error) {
	pagination := normalizePagination(filter.Pagination, defaultPageSize, maxPageSize)
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.OrderExpr("occurred_at DESC").
				Limit(pagination.Limit).
				Offset(pagination.Offset)
			return applyJournalFilter(q, filter)
		},
	}

	rows, total, err := r.List(ctx, criteria...)
	if err != nil {
		return types.JournalPage{}, err
	}
	entries := make([]types.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toJournalEntry(row))
	}
	return types.JournalPage{
		Entries:    entries,
		Total:      total,
		NextOffset: pagination.Offset + pagination.Limit,
		HasMore:    pagination.Offset+pagination.Limit < total,
	}, nil
}

// JournalStats aggregates entry counts grouped by kind.
func (r *Repository) JournalStats(ctx context.Context, filter types.JournalFilter) (types.JournalStats, error) {
	stats := types.JournalStats{ByKind: make(map[types.JournalKind]int)}
	if r.db == nil {
		return stats, errors.New("journal: stats requires bun DB")
	}
	query := r.db.NewSelect().
		Table("sync_journal").
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("kind").
		Group("kind")
	query = applyJournalFilter(query, filter)

	type row struct {
		Kind  string `bun:"kind"`
		Total int    `bun:"total"`
	}
	var rows []row
	if err := query.Scan(ctx, &rows); err != nil {
		return stats, err
	}
	for _, rec := range rows {
		stats.ByKind[types.JournalKind(rec.Kind)] = rec.Total
		stats.Total += rec.Total
	}
	return stats, nil
}

// Enqueue stores a failed collection fan-out for replay.
func (r *Repository) Enqueue(ctx context.Context, item types.RetryItem) error {
	if r.retries == nil {
		return errors.New("journal: retry queue requires bun DB")
	}
	if item.UserID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	if strings.TrimSpace(item.Collection) == "" {
		return types.InvalidArgument("journal: retry collection required")
	}
	rec := toRetryRecord(item)
	if rec.ID == uuid.Nil {
		rec.ID = r.idGen.UUID()
	}
	now := r.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = string(types.RetryStatusPending)
	}
	_, err := r.retries.Create(ctx, rec)
	return err
}

// Pending returns the oldest pending retries first.
func (r *Repository) Pending(ctx context.Context, limit int) ([]types.RetryItem, error) {
	if r.retries == nil {
		return nil, errors.New("journal: retry queue requires bun DB")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, _, err := r.retries.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("status = ?", string(types.RetryStatusPending)).
			OrderExpr("created_at ASC").
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	items := make([]types.RetryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRetryItem(row))
	}
	return items, nil
}

// Resolve records an attempt against a retry and moves it to status.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, status types.RetryStatus, lastErr string) error {
	if r.db == nil {
		return errors.New("journal: retry queue requires bun DB")
	}
	if id == uuid.Nil {
		return types.InvalidArgument("journal: retry id required")
	}
	if status == "" {
		status = types.RetryStatusPending
	}
	res, err := r.db.NewUpdate().
		Model((*RetryRecord)(nil)).
		Set("status = ?", string(status)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", lastErr).
		Set("updated_at = ?", r.clock.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return types.NotFound(fmt.Sprintf("journal: retry %s not found", id))
	}
	return nil
}

func applyJournalFilter(q *bun.SelectQuery, filter types.JournalFilter) *bun.SelectQuery {
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, kind := range filter.Kinds {
			kinds = append(kinds, string(kind))
		}
		q = q.Where("kind IN (?)", bun.In(kinds))
	}
	if filter.Since != nil && !filter.Since.IsZero() {
		q = q.Where("occurred_at >= ?", filter.Since)
	}
	return q
}

func normalizePagination(p types.Pagination, def, max int) types.Pagination {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func toEntryRecord(entry types.JournalEntry) *EntryRecord {
	return &EntryRecord{
		ID:         entry.ID,
		UserID:     entry.UserID,
		ActorID:    entry.ActorID,
		Kind:       string(entry.Kind),
		Updated:    entry.Updated,
		Failed:     entry.Failed,
		Complete:   entry.Complete,
		Data:       types.CloneFields(entry.Data),
		OccurredAt: entry.OccurredAt,
	}
}

func toJournalEntry(rec *EntryRecord) types.JournalEntry {
	if rec == nil {
		return types.JournalEntry{}
	}
	return types.JournalEntry{
		ID:         rec.ID,
		UserID:     rec.UserID,
		ActorID:    rec.ActorID,
		Kind:       types.JournalKind(rec.Kind),
		Updated:    rec.Updated,
		Failed:     rec.Failed,
		Complete:   rec.Complete,
		Data:       types.CloneFields(rec.Data),
		OccurredAt: rec.OccurredAt,
	}
}

func toRetryRecord(item types.RetryItem) *RetryRecord {
	changes := make(map[string]string, len(item.Changes))
	for field, value := range item.Changes {
		changes[string(field)] = value
	}
	return &RetryRecord{
		ID:         item.ID,
		UserID:     item.UserID,
		Collection: item.Collection,
		Changes:    changes,
		Attempts:   item.Attempts,
		Status:     string(item.Status),
		LastError:  item.LastError,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

func toRetryItem(rec *RetryRecord) types.RetryItem {
	if rec == nil {
		return types.RetryItem{}
	}
	changes := make(map[types.CanonicalField]string, len(rec.Changes))
	for field, value := range rec.Changes {
		changes[types.CanonicalField(field)] = value
	}
	return types.RetryItem{
		ID:         rec.ID,
		UserID:     rec.UserID,
		Collection: rec.Collection,
		Changes:    changes,
		Attempts:   rec.Attempts,
		Status:     types.RetryStatus(rec.Status),
		LastError:  rec.LastError,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}
