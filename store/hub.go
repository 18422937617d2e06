package store

import (
	"context"
	"sync"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// QueryFunc reloads the current result set of a subscription.
type QueryFunc func(ctx context.Context) ([]types.Document, error)

// Hub delivers change notifications to collection subscribers. Each
// subscription owns one goroutine that re-runs its query after a Publish and
// hands the fresh result set to onChange. Publishes that arrive while a
// reload is running coalesce into a single follow-up reload.
type Hub struct {
	mu     sync.Mutex
	next   uint64
	subs   map[string]map[uint64]*subscription
	closed bool
	logger types.Logger
}

type subscription struct {
	notify   chan struct{}
	cancel   context.CancelFunc
	query    QueryFunc
	onChange func([]types.Document)
	onError  func(error)
}

// NewHub constructs an empty subscription hub.
func NewHub(logger types.Logger) *Hub {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Hub{
		subs:   make(map[string]map[uint64]*subscription),
		logger: logger,
	}
}

// Subscribe registers a listener and delivers the initial result set
// asynchronously. The returned function stops delivery; it is safe to call
// more than once and from inside a callback.
func (h *Hub) Subscribe(ctx context.Context, collection string, query QueryFunc, onChange func([]types.Document), onError func(error)) (func(), error) {
	if query == nil || onChange == nil {
		return nil, types.InvalidArgument("store: subscription requires query and onChange")
	}
	if onError == nil {
		onError = func(error) {}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		notify:   make(chan struct{}, 1),
		cancel:   cancel,
		query:    query,
		onChange: onChange,
		onError:  onError,
	}
	sub.notify <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, types.InvalidArgument("store: hub closed")
	}
	h.next++
	id := h.next
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]*subscription)
	}
	h.subs[collection][id] = sub
	h.mu.Unlock()

	go sub.run(subCtx)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.remove(collection, id)
			cancel()
		})
	}, nil
}

// Publish marks every subscription on the collection as stale.
func (h *Hub) Publish(collection string) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs[collection]))
	for _, sub := range h.subs[collection] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions on the collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

// Close cancels every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := h.subs
	h.subs = make(map[string]map[uint64]*subscription)
	h.mu.Unlock()
	for _, subs := range all {
		for _, sub := range subs {
			sub.cancel()
		}
	}
}

func (h *Hub) remove(collection string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[collection]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.subs, collection)
		}
	}
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}
		docs, err := s.query(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.onError(err)
			continue
		}
		s.onChange(docs)
	}
}
