package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant gRPC connection
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Qdrant stores points in a Qdrant collection with cosine distance
type Qdrant struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// Ensure Qdrant implements Store interface.
var _ Store = (*Qdrant)(nil)

// NewQdrant connects to Qdrant
func NewQdrant(cfg QdrantConfig, logger *zap.Logger) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection, logger: logger}, nil
}

// EnsureCollection creates the collection if it does not exist
func (q *Qdrant) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	q.logger.Info("Created qdrant collection", zap.String("collection", q.collection), zap.Int("dimension", dimension))
	return nil
}

// Upsert writes points and waits for them to be indexed
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("point %s payload: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(toFloat32(p.Vector)...),
			Payload: payload,
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search runs a filtered nearest neighbour query
func (q *Qdrant) Search(ctx context.Context, vector []float64, k int, filter Filter) ([]Match, error) {
	if k <= 0 {
		k = 5
	}

	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         toQdrantFilter(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, err)
	}

	matches := make([]Match, 0, len(scored))
	for _, p := range scored {
		matches = append(matches, Match{
			ID:      p.GetId().GetUuid(),
			Score:   float64(p.GetScore()),
			Payload: fromValueMap(p.GetPayload()),
		})
	}
	return matches, nil
}

// DeleteWhere removes the points matching the filter
func (q *Qdrant) DeleteWhere(ctx context.Context, filter Filter) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(toQdrantFilter(filter)),
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", q.collection, err)
	}
	return nil
}

// Count returns the number of points in the collection
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.collection, err)
	}
	return int(n), nil
}

// Close closes the gRPC connection
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func toQdrantFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func fromValueMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}
