package sidewalk

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/bwise1/sidewalk_atlas/internal/geo"
	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

type naturalKey struct {
	sourceID int64
	side     model.Side
}

// MemStore is an in-process Store. It backs the deterministic test
// path and single-node deployments that load their reference set
// from a file rather than PostGIS.
type MemStore struct {
	mu   sync.RWMutex
	rows map[naturalKey]*model.ReferenceSidewalk
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[naturalKey]*model.ReferenceSidewalk)}
}

func (m *MemStore) Upsert(_ context.Context, sw *model.ReferenceSidewalk) (UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := naturalKey{sourceID: sw.SourceID, side: sw.Side}
	existing, ok := m.rows[key]
	if !ok {
		if sw.ID == uuid.Nil {
			sw.ID = uuid.New()
		}
		sw.Status = model.StatusActive
		sw.LastUpdated = time.Now()
		stored := *sw
		m.rows[key] = &stored
		return UpsertInserted, nil
	}

	// Natural key wins: the stored id survives re-imports.
	sw.ID = existing.ID
	if existing.Status == model.StatusActive && sameContent(existing, sw) {
		return UpsertUnchanged, nil
	}

	sw.Status = model.StatusActive
	sw.LastUpdated = time.Now()
	stored := *sw
	m.rows[key] = &stored
	return UpsertUpdated, nil
}

func sameContent(a, b *model.ReferenceSidewalk) bool {
	return reflect.DeepEqual(a.Geometry, b.Geometry) &&
		reflect.DeepEqual(a.Street, b.Street) &&
		reflect.DeepEqual(a.Surface, b.Surface) &&
		reflect.DeepEqual(a.WidthMeters, b.WidthMeters) &&
		reflect.DeepEqual(a.Tags, b.Tags)
}

func (m *MemStore) QueryAll(_ context.Context, bounds *model.BoundingBox) ([]model.ReferenceSidewalk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ReferenceSidewalk
	for _, sw := range m.rows {
		if sw.Status != model.StatusActive {
			continue
		}
		if bounds != nil && !bounds.Bound().Intersects(sw.Geometry.Bound()) {
			continue
		}
		out = append(out, *sw)
	}
	sortByID(out)
	return out, nil
}

func (m *MemStore) QueryNear(_ context.Context, point orb.Point, radiusMeters float64) ([]model.ReferenceSidewalk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	searchBound := geo.BoundAroundPoint(point, radiusMeters)

	var out []model.ReferenceSidewalk
	for _, sw := range m.rows {
		if sw.Status != model.StatusActive {
			continue
		}
		if !searchBound.Intersects(sw.Geometry.Bound()) {
			continue
		}
		out = append(out, *sw)
	}
	sortByID(out)
	return out, nil
}

// Retire marks a geometry inactive while keeping the row for audit.
func (m *MemStore) Retire(_ context.Context, sourceID int64, side model.Side) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sw, ok := m.rows[naturalKey{sourceID: sourceID, side: side}]
	if !ok {
		return errors.Errorf("no reference geometry for source %d side %s", sourceID, side)
	}
	sw.Status = model.StatusRetired
	sw.LastUpdated = time.Now()
	return nil
}

func sortByID(rows []model.ReferenceSidewalk) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ID.String() < rows[j].ID.String()
	})
}
