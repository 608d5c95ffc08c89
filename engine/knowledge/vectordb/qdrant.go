package vectordb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/slok/goresilience"
	"github.com/slok/goresilience/retry"
	"github.com/slok/goresilience/timeout"
)

const (
	qdrantDefaultTimeout = 10 * time.Second
	qdrantDefaultTopK    = 5
	qdrantRetryWait      = 100 * time.Millisecond
)

var payloadIndexFields = []string{"rule_id", "slug", "difficulty"}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
	Retries    int
}

type QdrantStore struct {
	http       *resty.Client
	runner     goresilience.Runner
	collection string
	dimension  int
}

type qdrantEnvelope[T any] struct {
	Result T      `json:"result"`
	Status any    `json:"status"`
	Time   float64 `json:"time"`
}

type qdrantSearchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type qdrantSnapshot struct {
	Name         string `json:"name"`
	CreationTime string `json:"creation_time"`
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, errors.New("qdrant: url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant: dimension must be greater than zero")
	}
	callTimeout := cfg.Timeout
	if callTimeout <= 0 {
		callTimeout = qdrantDefaultTimeout
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	runner := goresilience.RunnerChain(
		timeout.NewMiddleware(timeout.Config{Timeout: callTimeout}),
		retry.NewMiddleware(retry.Config{Times: cfg.Retries, WaitBase: qdrantRetryWait}),
	)
	return &QdrantStore{
		http:       client,
		runner:     runner,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}, nil
}

// EnsureCollection creates the cosine collection and keyword payload indexes when missing.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, nil, http.StatusNotFound)
	if err != nil {
		return err
	}
	if status != http.StatusNotFound {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{"size": q.dimension, "distance": "Cosine"},
	}
	if _, err := q.do(ctx, http.MethodPut, q.collectionPath(""), body, nil); err != nil {
		return err
	}
	for _, field := range payloadIndexFields {
		index := map[string]any{"field_name": field, "field_schema": "keyword"}
		if _, err := q.do(ctx, http.MethodPut, q.collectionPath("/index"), index, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != q.dimension {
			return fmt.Errorf("qdrant: point %q has dimension %d, want %d", p.ID, len(p.Vector), q.dimension)
		}
		body = append(body, map[string]any{"id": p.ID, "vector": p.Vector, "payload": p.Payload})
	}
	_, err := q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
	return err
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("qdrant: query dimension %d, want %d", len(vector), q.dimension)
	}
	if limit <= 0 {
		limit = qdrantDefaultTopK
	}
	request := map[string]any{"vector": vector, "limit": limit, "with_payload": true}
	var out qdrantEnvelope[[]qdrantSearchResult]
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), request, &out); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(out.Result))
	for _, res := range out.Result {
		payload := res.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		matches = append(matches, Match{ID: fmt.Sprint(res.ID), Score: res.Score, Payload: payload})
	}
	return matches, nil
}

func (q *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), map[string]any{"points": ids}, nil)
	return err
}

func (q *QdrantStore) CreateSnapshot(ctx context.Context) (Snapshot, error) {
	var out qdrantEnvelope[qdrantSnapshot]
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/snapshots?wait=true"), nil, &out); err != nil {
		return Snapshot{}, err
	}
	return toSnapshot(out.Result), nil
}

func (q *QdrantStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var out qdrantEnvelope[[]qdrantSnapshot]
	if _, err := q.do(ctx, http.MethodGet, q.collectionPath("/snapshots"), nil, &out); err != nil {
		return nil, err
	}
	snapshots := make([]Snapshot, 0, len(out.Result))
	for _, s := range out.Result {
		snapshots = append(snapshots, toSnapshot(s))
	}
	return snapshots, nil
}

func (q *QdrantStore) DeleteSnapshot(ctx context.Context, name string) error {
	_, err := q.do(ctx, http.MethodDelete, q.collectionPath("/snapshots/"+name), nil, nil)
	return err
}

func (q *QdrantStore) Close(context.Context) error {
	return nil
}

func (q *QdrantStore) collectionPath(suffix string) string {
	return "/collections/" + q.collection + suffix
}

func toSnapshot(s qdrantSnapshot) Snapshot {
	created, err := time.Parse("2006-01-02T15:04:05.999999999", s.CreationTime)
	if err != nil {
		created, _ = time.Parse(time.RFC3339Nano, s.CreationTime)
	}
	return Snapshot{Name: s.Name, CreatedAt: created}
}

// do runs one request through the timeout and retry chain. Statuses listed in
// allowed are returned without an error.
func (q *QdrantStore) do(ctx context.Context, method, path string, body, out any, allowed ...int) (int, error) {
	status := 0
	err := q.runner.Run(ctx, func(ctx context.Context) error {
		req := q.http.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("qdrant: %s %s: %w", method, path, err)
		}
		status = resp.StatusCode()
		for _, code := range allowed {
			if status == code {
				return nil
			}
		}
		if resp.IsError() {
			return fmt.Errorf("qdrant: %s %s returned %d: %s", method, path, status, strings.TrimSpace(resp.String()))
		}
		return nil
	})
	return status, err
}
