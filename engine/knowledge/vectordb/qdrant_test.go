package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type fakeQdrant struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeQdrant) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestQdrant(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*QdrantStore, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := NewQdrantStore(QdrantConfig{
		URL:        srv.URL,
		APIKey:     "secret",
		Collection: "rules",
		Dimension:  2,
		Timeout:    time.Second,
		Retries:    1,
	})
	require.NoError(t, err)
	return store, fake
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestQdrantStore_EnsureCollection(t *testing.T) {
	t.Run("Should create collection and payload indexes when missing", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("api-key"))
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "not found"}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"result": true})
		})
		require.NoError(t, store.EnsureCollection(context.Background()))
		calls := fake.recorded()
		require.Len(t, calls, 5)
		assert.Equal(t, http.MethodPut, calls[1].Method)
		assert.Equal(t, "/collections/rules", calls[1].Path)
		vectors := calls[1].Body["vectors"].(map[string]any)
		assert.Equal(t, "Cosine", vectors["distance"])
		assert.EqualValues(t, 2, vectors["size"])
		fields := []any{calls[2].Body["field_name"], calls[3].Body["field_name"], calls[4].Body["field_name"]}
		assert.Equal(t, []any{"rule_id", "slug", "difficulty"}, fields)
	})

	t.Run("Should skip creation when collection exists", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"status": "green"}})
		})
		require.NoError(t, store.EnsureCollection(context.Background()))
		assert.Len(t, fake.recorded(), 1)
	})
}

func TestQdrantStore_Points(t *testing.T) {
	t.Run("Should upsert points with payload", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"status": "completed"}})
		})
		point := Point{ID: PointID("r1"), Vector: []float32{0.5, 0.5}, Payload: map[string]any{"rule_id": "r1"}}
		require.NoError(t, store.Upsert(context.Background(), []Point{point}))
		calls := fake.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "/collections/rules/points", calls[0].Path)
		points := calls[0].Body["points"].([]any)
		require.Len(t, points, 1)
		assert.Equal(t, PointID("r1"), points[0].(map[string]any)["id"])
	})

	t.Run("Should reject vectors of the wrong dimension", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		})
		err := store.Upsert(context.Background(), []Point{{ID: "x", Vector: []float32{1}}})
		require.Error(t, err)
		assert.Empty(t, fake.recorded())
	})

	t.Run("Should decode search results", func(t *testing.T) {
		store, _ := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"result": []map[string]any{
				{"id": "a1", "score": 0.91, "payload": map[string]any{"rule_id": "r1", "name": "Запятая"}},
				{"id": "a2", "score": 0.5},
			}})
		})
		matches, err := store.Search(context.Background(), []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "r1", PayloadString(matches[0].Payload, "rule_id"))
		assert.InDelta(t, 0.91, matches[0].Score, 1e-9)
		assert.NotNil(t, matches[1].Payload)
	})

	t.Run("Should delete points by id", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"status": "completed"}})
		})
		require.NoError(t, store.Delete(context.Background(), []string{PointID("r1")}))
		calls := fake.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "/collections/rules/points/delete", calls[0].Path)
	})

	t.Run("Should surface server errors", func(t *testing.T) {
		store, _ := newTestQdrant(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": map[string]any{"error": "boom"}})
		})
		_, err := store.Search(context.Background(), []float32{1, 0}, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestQdrantStore_Snapshots(t *testing.T) {
	t.Run("Should create list and delete snapshots", func(t *testing.T) {
		store, fake := newTestQdrant(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{
					"name": "rules-1.snapshot", "creation_time": "2026-01-02T03:04:05",
				}})
			case http.MethodGet:
				writeJSON(w, http.StatusOK, map[string]any{"result": []map[string]any{
					{"name": "rules-1.snapshot", "creation_time": "2026-01-02T03:04:05"},
				}})
			default:
				writeJSON(w, http.StatusOK, map[string]any{"result": true})
			}
		})
		ctx := context.Background()
		snap, err := store.CreateSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, "rules-1.snapshot", snap.Name)
		assert.Equal(t, 2026, snap.CreatedAt.Year())
		list, err := store.ListSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.NoError(t, store.DeleteSnapshot(ctx, "rules-1.snapshot"))
		calls := fake.recorded()
		assert.Equal(t, "/collections/rules/snapshots", calls[0].Path)
		assert.Equal(t, "wait=true", calls[0].Query)
		assert.Equal(t, "/collections/rules/snapshots/rules-1.snapshot", calls[len(calls)-1].Path)
	})
}
