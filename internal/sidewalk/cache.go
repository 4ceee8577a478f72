package sidewalk

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/paulmach/orb"
)

// Snapshot is an immutable view of the active reference set. Readers
// share it freely; a refresh builds a new one and swaps the pointer.
type Snapshot struct {
	Geometries []model.ReferenceSidewalk
	LoadedAt   time.Time
}

// Cache holds the current reference snapshot behind an atomic
// pointer with a TTL. Concurrent snap/validate reads never observe a
// partially-loaded set; refreshes are single-flighted.
type Cache struct {
	store Store
	ttl   time.Duration

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serialises refreshes only
}

func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Get returns a fresh snapshot, reloading from the store when the
// cached one has expired or was invalidated.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && time.Since(snap.LoadedAt) < c.ttl {
		return snap, nil
	}
	return c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have refreshed while we waited.
	if snap := c.current.Load(); snap != nil && time.Since(snap.LoadedAt) < c.ttl {
		return snap, nil
	}

	geometries, err := c.store.QueryAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Geometries: geometries, LoadedAt: time.Now()}
	c.current.Store(snap)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read reloads.
// Called after an import completes.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// CachedStore is the in-process candidate backend: QueryNear and
// QueryAll answer from the snapshot cache instead of per-request
// round-trips to the backing store. Writes pass through and drop the
// snapshot.
type CachedStore struct {
	inner Store
	cache *Cache
}

func NewCachedStore(inner Store, cache *Cache) *CachedStore {
	return &CachedStore{inner: inner, cache: cache}
}

func (s *CachedStore) Upsert(ctx context.Context, sw *model.ReferenceSidewalk) (UpsertOutcome, error) {
	outcome, err := s.inner.Upsert(ctx, sw)
	if err == nil && outcome != UpsertUnchanged {
		s.cache.Invalidate()
	}
	return outcome, err
}

func (s *CachedStore) QueryAll(ctx context.Context, bounds *model.BoundingBox) ([]model.ReferenceSidewalk, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	if bounds == nil {
		return snap.Geometries, nil
	}
	var out []model.ReferenceSidewalk
	box := bounds.Bound()
	for _, sw := range snap.Geometries {
		if box.Intersects(sw.Geometry.Bound()) {
			out = append(out, sw)
		}
	}
	return out, nil
}

func (s *CachedStore) QueryNear(ctx context.Context, point orb.Point, radiusMeters float64) ([]model.ReferenceSidewalk, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ReferenceSidewalk
	for _, sw := range snap.Geometries {
		if geo.BoundDistance(point, sw.Geometry.Bound()) <= radiusMeters {
			out = append(out, sw)
		}
	}
	return out, nil
}
