package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL bounds how long a snapshot is served.
	DefaultTTL = 5 * time.Minute
	// DefaultParallelism bounds concurrent collection reads during a refresh.
	DefaultParallelism = 4

	refreshKey      = "refresh"
	maxRefreshRound = 3
)

// ErrRefreshContended is returned when concurrent invalidations keep
// replacing the snapshot before it covers the requested collections.
var ErrRefreshContended = errors.New("snapshot: refresh contended")

// Config wires the snapshot cache.
type Config struct {
	Loader      Loader
	TTL         time.Duration
	Parallelism int
	Clock       types.Clock
	Logger      types.Logger
	Hooks       types.Hooks
}

// Cache serves a TTL-bounded bulk snapshot. Concurrent misses share a single
// in-flight refresh.
type Cache struct {
	loader   Loader
	ttl      time.Duration
	parallel int64
	clock    types.Clock
	logger   types.Logger
	hooks    types.Hooks

	group singleflight.Group

	mu         sync.Mutex
	current    *Snapshot
	generation uint64
}

// New constructs a cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Loader == nil {
		return nil, errors.New("snapshot: loader required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	parallel := cfg.Parallelism
	if parallel <= 0 {
		parallel = DefaultParallelism
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Cache{
		loader:   cfg.Loader,
		ttl:      ttl,
		parallel: int64(parallel),
		clock:    clock,
		logger:   logger,
		hooks:    cfg.Hooks,
	}, nil
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrLoad returns the current snapshot when it is fresh and holds every
// requested collection. Otherwise it refreshes the union of the requested
// collections and those already held by a fresh snapshot.
func (c *Cache) GetOrLoad(ctx context.Context, collections ...string) (*Snapshot, error) {
	requested := normalize(collections)
	if len(requested) == 0 {
		return nil, types.InvalidArgument("snapshot: at least one collection required")
	}
	started := c.clock.Now()

	if snap := c.fresh(requested); snap != nil {
		c.emit(ctx, requested, true, started)
		return snap, nil
	}

	for round := 0; round < maxRefreshRound; round++ {
		// The shared load outlives any one caller's cancellation.
		loadCtx := context.WithoutCancel(ctx)
		ch := c.group.DoChan(refreshKey, func() (any, error) {
			return c.refresh(loadCtx, requested)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return nil, res.Err
		}
		snap := res.Val.(*Snapshot)
		if snap.Has(requested...) {
			c.emit(ctx, requested, false, started)
			return snap, nil
		}
		// Joined a refresh started for other collections.
		if fresh := c.fresh(requested); fresh != nil {
			c.emit(ctx, requested, false, started)
			return fresh, nil
		}
	}
	return nil, ErrRefreshContended
}

// Invalidate drops the snapshot. A refresh already in flight still answers
// its callers but is not stored.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
}

// Current returns the stored snapshot without loading, or nil.
func (c *Cache) Current() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cache) fresh(requested []string) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.isFresh(c.current) || !c.current.Has(requested...) {
		return nil
	}
	return c.current
}

func (c *Cache) isFresh(snap *Snapshot) bool {
	return c.clock.Now().Sub(snap.capturedAt) < c.ttl
}

func (c *Cache) refresh(ctx context.Context, requested []string) (*Snapshot, error) {
	c.mu.Lock()
	generation := c.generation
	union := requested
	if c.current != nil && c.isFresh(c.current) {
		union = normalize(append(c.current.Collections(), requested...))
	}
	c.mu.Unlock()

	var (
		mu      sync.Mutex
		results = make(map[string][]types.Document, len(union))
		sem     = semaphore.NewWeighted(c.parallel)
		p       = pool.New().WithContext(ctx).WithCancelOnError()
	)
	for _, name := range union {
		name := name
		p.Go(func(ctx context.Context) error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("snapshot: acquire load slot: %w", err)
			}
			defer sem.Release(1)

			docs, err := c.loader.Load(ctx, name)
			if err != nil {
				return fmt.Errorf("snapshot: load %s: %w", name, err)
			}
			if docs == nil {
				docs = []types.Document{}
			}
			mu.Lock()
			results[name] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		c.logger.Error("snapshot refresh failed", err, "collections", union)
		return nil, err
	}

	snap := &Snapshot{collections: results, capturedAt: c.clock.Now()}
	c.mu.Lock()
	if c.generation == generation {
		c.current = snap
	}
	c.mu.Unlock()
	c.logger.Debug("snapshot refreshed", "collections", union)
	return snap, nil
}

func (c *Cache) emit(ctx context.Context, collections []string, hit bool, started time.Time) {
	if c.hooks.AfterSnapshotRead == nil {
		return
	}
	c.hooks.AfterSnapshotRead(ctx, types.SnapshotEvent{
		Collections: collections,
		Hit:         hit,
		Duration:    c.clock.Now().Sub(started),
	})
}

func normalize(collections []string) []string {
	seen := make(map[string]bool, len(collections))
	out := make([]string, 0, len(collections))
	for _, name := range collections {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
