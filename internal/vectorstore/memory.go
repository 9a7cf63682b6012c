package vectorstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Memory is an in-memory vector store using brute-force cosine similarity.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	points    map[string]Point
}

// Ensure Memory implements Store interface.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{points: make(map[string]Point)}
}

// EnsureCollection fixes the vector dimension
func (m *Memory) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension != 0 && m.dimension != dimension && len(m.points) > 0 {
		return errors.New("vector dimension mismatch")
	}
	m.dimension = dimension
	return nil
}

// Upsert inserts or replaces points
func (m *Memory) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if m.dimension != 0 && len(p.Vector) != m.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, p := range points {
		if _, ok := m.points[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.points[p.ID] = p
	}
	return nil
}

// Search returns the k points most similar to vector. Ties keep insertion order.
func (m *Memory) Search(_ context.Context, vector []float64, k int, filter Filter) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 5
	}

	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		p := m.points[id]
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		matches = append(matches, Match{ID: p.ID, Score: Cosine(p.Vector, vector), Payload: p.Payload})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteWhere removes the points matching the filter
func (m *Memory) DeleteWhere(_ context.Context, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		if matchesFilter(m.points[id].Payload, filter) {
			delete(m.points, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// Count returns the number of points
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

func matchesFilter(payload map[string]any, filter Filter) bool {
	for k, v := range filter {
		if String(payload, k) != v {
			return false
		}
	}
	return true
}
