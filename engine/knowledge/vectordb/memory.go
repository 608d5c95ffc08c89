package vectordb

import (
	"context"
	"fmt"
	"math"
	"maps"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps points in process. It backs the embedded deployment mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]Point
	snapshots []Snapshot
	now       func() time.Time
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension, points: make(map[string]Point), now: time.Now}
}

func (m *MemoryStore) EnsureCollection(context.Context) error {
	if m.dimension <= 0 {
		return fmt.Errorf("memory store: dimension must be greater than zero")
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if len(p.Vector) != m.dimension {
			return fmt.Errorf("memory store: point %q has dimension %d, want %d", p.ID, len(p.Vector), m.dimension)
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		m.points[p.ID] = Point{ID: p.ID, Vector: vec, Payload: maps.Clone(p.Payload)}
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("memory store: query dimension %d, want %d", len(vector), m.dimension)
	}
	if limit <= 0 {
		limit = qdrantDefaultTopK
	}
	m.mu.RLock()
	matches := make([]Match, 0, len(m.points))
	for _, p := range m.points {
		matches = append(matches, Match{ID: p.ID, Score: cosine(vector, p.Vector), Payload: maps.Clone(p.Payload)})
	}
	m.mu.RUnlock()
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *MemoryStore) CreateSnapshot(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	snap := Snapshot{Name: fmt.Sprintf("memory-%d.snapshot", now.UnixNano()), CreatedAt: now}
	m.snapshots = append(m.snapshots, snap)
	return snap, nil
}

func (m *MemoryStore) ListSnapshots(context.Context) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

func (m *MemoryStore) DeleteSnapshot(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.snapshots {
		if s.Name == name {
			m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memory store: snapshot %q not found", name)
}

func (m *MemoryStore) Close(context.Context) error {
	return nil
}

// Len reports the number of stored points.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Get returns a copy of the point stored under id.
func (m *MemoryStore) Get(id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return Point{}, false
	}
	return Point{ID: p.ID, Vector: p.Vector, Payload: maps.Clone(p.Payload)}, true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
