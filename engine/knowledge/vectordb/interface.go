package vectordb

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderQdrant Provider = "qdrant"
	ProviderMemory Provider = "memory"
)

// Point is a vector with its payload. IDs must be UUID strings.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

type Snapshot struct {
	Name      string
	CreatedAt time.Time
}

// Store is the rule index contract used by retrieval, sync and maintenance.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
	CreateSnapshot(ctx context.Context) (Snapshot, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	DeleteSnapshot(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trainingground/rules"))

// PointID maps a document id to a stable point id so repeated upserts and deletes hit the same point.
func PointID(documentID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentID)).String()
}

// PayloadString reads a string payload field.
func PayloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
