package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store"
	"github.com/google/uuid"
)

// Store is an in-memory DocumentStore. Documents are returned in insertion
// order. Failure injection helpers make partial-failure paths testable.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	hub         *store.Hub
	idGen       types.IDGenerator

	bulkFailures  map[string]error
	writeFailures map[string]map[string]error
	queryCalls    map[string]int
	bulkCalls     map[string]int
}

type collection struct {
	docs  map[string]*entry
	order []string
}

type entry struct {
	fields map[string]any
}

// New provisions an empty in-memory store.
func New() *Store {
	return &Store{
		collections:   make(map[string]*collection),
		hub:           store.NewHub(nil),
		idGen:         types.UUIDGenerator{},
		bulkFailures:  make(map[string]error),
		writeFailures: make(map[string]map[string]error),
		queryCalls:    make(map[string]int),
		bulkCalls:     make(map[string]int),
	}
}

var _ types.DocumentStore = (*Store)(nil)

// Query implements types.DocumentStore.
func (s *Store) Query(ctx context.Context, name string, filters ...types.Filter) ([]types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.queryCalls[name]++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return []types.Document{}, nil
	}
	out := make([]types.Document, 0, len(coll.order))
	for _, id := range coll.order {
		e := coll.docs[id]
		if e == nil || !store.Match(e.fields, filters) {
			continue
		}
		out = append(out, types.Document{ID: id, Collection: name, Fields: types.CloneFields(e.fields)})
	}
	return out, nil
}

// Insert implements types.DocumentStore. An "id" field is honored when set.
func (s *Store) Insert(ctx context.Context, name string, fields map[string]any) (types.Document, error) {
	if err := ctx.Err(); err != nil {
		return types.Document{}, err
	}
	fields = types.CloneFields(fields)
	if fields == nil {
		fields = make(map[string]any)
	}
	id := strings.TrimSpace(types.AsString(fields["id"]))
	if id == "" {
		id = s.idGen.UUID().String()
	}
	delete(fields, "id")

	s.mu.Lock()
	coll := s.collection(name)
	if _, exists := coll.docs[id]; exists {
		s.mu.Unlock()
		return types.Document{}, fmt.Errorf("memory store: %s/%s already exists", name, id)
	}
	coll.docs[id] = &entry{fields: fields}
	coll.order = append(coll.order, id)
	s.mu.Unlock()

	s.hub.Publish(name)
	return types.Document{ID: id, Collection: name, Fields: types.CloneFields(fields)}, nil
}

// Write implements types.DocumentStore.
func (s *Store) Write(ctx context.Context, name, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.writeFailures[name][id]; err != nil {
		s.mu.Unlock()
		return err
	}
	coll := s.collection(name)
	e, ok := coll.docs[id]
	if !ok {
		s.mu.Unlock()
		return types.NotFound(fmt.Sprintf("memory store: %s/%s not found", name, id))
	}
	for k, v := range fields {
		e.fields[k] = v
	}
	s.mu.Unlock()

	s.hub.Publish(name)
	return nil
}

// BulkWrite implements types.DocumentStore. Either every update applies or
// none does.
func (s *Store) BulkWrite(ctx context.Context, name string, updates []types.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.bulkCalls[name]++
	if err := s.bulkFailures[name]; err != nil {
		s.mu.Unlock()
		return err
	}
	coll := s.collection(name)
	for _, update := range updates {
		if _, ok := coll.docs[update.ID]; !ok {
			s.mu.Unlock()
			return types.PartialWrite(name, types.NotFound(fmt.Sprintf("memory store: %s/%s not found", name, update.ID)))
		}
	}
	for _, update := range updates {
		e := coll.docs[update.ID]
		for k, v := range update.Fields {
			e.fields[k] = v
		}
	}
	s.mu.Unlock()

	if len(updates) > 0 {
		s.hub.Publish(name)
	}
	return nil
}

// Delete implements types.DocumentStore. Deleting a missing document is a
// no-op.
func (s *Store) Delete(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	coll := s.collection(name)
	if _, ok := coll.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(coll.docs, id)
	for i, existing := range coll.order {
		if existing == id {
			coll.order = append(coll.order[:i], coll.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.hub.Publish(name)
	return nil
}

// Subscribe implements types.DocumentStore.
func (s *Store) Subscribe(ctx context.Context, name string, filters []types.Filter, onChange func([]types.Document), onError func(error)) (func(), error) {
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	filters = append([]types.Filter(nil), filters...)
	return s.hub.Subscribe(ctx, name, func(ctx context.Context) ([]types.Document, error) {
		return s.Query(ctx, name, filters...)
	}, onChange, onError)
}

// FailBulkWrites makes every BulkWrite on the collection return err. A nil
// error clears the failure.
func (s *Store) FailBulkWrites(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.bulkFailures, name)
		return
	}
	s.bulkFailures[name] = err
}

// FailWrite makes single-record writes to the document return err.
func (s *Store) FailWrite(name, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailures[name] == nil {
		s.writeFailures[name] = make(map[string]error)
	}
	if err == nil {
		delete(s.writeFailures[name], id)
		return
	}
	s.writeFailures[name][id] = err
}

// QueryCalls returns how many queries hit the collection.
func (s *Store) QueryCalls(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCalls[name]
}

// BulkCalls returns how many bulk writes targeted the collection.
func (s *Store) BulkCalls(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bulkCalls[name]
}

// Get returns a copy of a stored document.
func (s *Store) Get(name, id string) (types.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return types.Document{}, false
	}
	e, ok := coll.docs[id]
	if !ok {
		return types.Document{}, false
	}
	return types.Document{ID: id, Collection: name, Fields: types.CloneFields(e.fields)}, true
}

// Close stops every live subscription.
func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) collection(name string) *collection {
	coll, ok := s.collections[name]
	if !ok {
		coll = &collection{docs: make(map[string]*entry)}
		s.collections[name] = coll
	}
	return coll
}

// ProfileRepository is an in-memory types.ProfileRepository.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]types.UserProfile
	clock    types.Clock
}

// NewProfileRepository provisions an in-memory profile repository.
func NewProfileRepository(clock types.Clock) *ProfileRepository {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &ProfileRepository{
		profiles: make(map[uuid.UUID]types.UserProfile),
		clock:    clock,
	}
}

var _ types.ProfileRepository = (*ProfileRepository)(nil)

// GetProfile implements types.ProfileRepository.
func (r *ProfileRepository) GetProfile(_ context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// UpsertProfile implements types.ProfileRepository.
func (r *ProfileRepository) UpsertProfile(_ context.Context, profile types.UserProfile) (*types.UserProfile, error) {
	if profile.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if existing, ok := r.profiles[profile.UserID]; ok && profile.CreatedAt.IsZero() {
		profile.CreatedAt = existing.CreatedAt
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if strings.TrimSpace(profile.Role) == "" {
		profile.Role = types.RoleUser
	}
	profile.UpdatedAt = now
	r.profiles[profile.UserID] = profile
	return &profile, nil
}

// ListProfiles implements types.ProfileRepository; newest first.
func (r *ProfileRepository) ListProfiles(_ context.Context, filter types.ProfileFilter) (types.ProfilePage, error) {
	r.mu.RLock()
	matched := make([]types.UserProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		if filter.Role != "" && !strings.EqualFold(profile.Role, filter.Role) {
			continue
		}
		if filter.Since != nil && profile.CreatedAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, profile)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].UserID, matched[j].UserID)
	})
	total := len(matched)
	offset := filter.Pagination.Offset
	if offset > total {
		offset = total
	}
	if offset < 0 {
		offset = 0
	}
	end := total
	if filter.Pagination.Limit > 0 && offset+filter.Pagination.Limit < end {
		end = offset + filter.Pagination.Limit
	}
	return types.ProfilePage{Profiles: matched[offset:end], Total: total}, nil
}

// DeleteProfile implements types.ProfileRepository.
func (r *ProfileRepository) DeleteProfile(_ context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, userID)
	return nil
}

func newerFirst(a, b time.Time, aID, bID uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.String() < bID.String()
}
