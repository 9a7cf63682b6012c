// Package vectorstore persists embedded chunks and answers similarity queries.
package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Point is an embedded chunk with its payload
type Point struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// Match is a search hit
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filter restricts a search to points whose payload fields equal the values
type Filter map[string]string

// Store persists vectors and supports filtered similarity search.
type Store interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float64, k int, filter Filter) ([]Match, error)
	DeleteWhere(ctx context.Context, filter Filter) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// PointID derives a stable UUID from the parts so that re-ingesting the same
// chunk overwrites it.
func PointID(parts ...any) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprint(parts...))).String()
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty,
// zero or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// String returns a payload field as a string
func String(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// Int returns a payload field as an int
func Int(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
