package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-3, 0}), 1e-9)
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float64{1}, []float64{1, 2}))
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 2}))
}

func TestPointIDStable(t *testing.T) {
	assert.Equal(t, PointID("Immobilier", "a.md", 1), PointID("Immobilier", "a.md", 1))
	assert.NotEqual(t, PointID("Immobilier", "a.md", 1), PointID("Immobilier", "a.md", 2))
}

func TestMemory_SearchFilterDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.EnsureCollection(ctx, 2))

	require.NoError(t, m.Upsert(ctx, []Point{
		{ID: "a", Vector: []float64{1, 0}, Payload: map[string]any{"sector": "Immobilier", "text": "a"}},
		{ID: "b", Vector: []float64{0.9, 0.1}, Payload: map[string]any{"sector": "Industrie", "text": "b"}},
		{ID: "c", Vector: []float64{0, 1}, Payload: map[string]any{"sector": "Immobilier", "text": "c", "chunk": 3}},
	}))
	assert.Error(t, m.Upsert(ctx, []Point{{ID: "d", Vector: []float64{1}}}))

	matches, err := m.Search(ctx, []float64{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)

	matches, err = m.Search(ctx, []float64{1, 0}, 10, Filter{"sector": "Immobilier"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "c", matches[1].ID)
	assert.Equal(t, 3, Int(matches[1].Payload, "chunk"))
	assert.Equal(t, "c", String(matches[1].Payload, "text"))

	// upsert replaces
	require.NoError(t, m.Upsert(ctx, []Point{{ID: "a", Vector: []float64{0, 1}, Payload: map[string]any{"sector": "Immobilier"}}}))
	n, _ := m.Count(ctx)
	assert.Equal(t, 3, n)

	require.NoError(t, m.DeleteWhere(ctx, Filter{"sector": "Immobilier"}))
	n, _ = m.Count(ctx)
	assert.Equal(t, 1, n)
}
