package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"edurag/internal/domain"
)

func newTestStorage(t *testing.T, handler http.HandlerFunc) (*Storage, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewStorage(Config{URL: srv.URL, Collection: "courses", MaxRetries: 2})
	return s, srv
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func TestInitCreatesMissingCollection(t *testing.T) {
	var created bool
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/courses" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Vectors.Size != 384 || body.Vectors.Distance != "Cosine" {
				t.Fatalf("create body = %+v", body)
			}
			created = true
			writeResult(w, true)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	if err := s.Init(context.Background(), 384); err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("collection was not created")
	}
}

func TestInitAcceptsMatchingCollection(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 384, "distance": "Cosine"},
				},
			},
		})
	})
	if err := s.Init(context.Background(), 384); err != nil {
		t.Fatal(err)
	}
}

func TestInitRejectsDimensionMismatch(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 768, "distance": "Cosine"},
				},
			},
		})
	})
	if err := s.Init(context.Background(), 384); err == nil {
		t.Fatal("expected mismatch error for existing 768-wide collection")
	}
}

func TestUpsertRequestShape(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/courses/points" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Fatal("upsert must wait for completion")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		writeResult(w, true)
	})

	rec := domain.VectorRecord{
		Chunk: domain.Chunk{
			ID:         "chunk-1",
			BlockID:    "blk-1",
			CourseID:   "course-v1:MIT+8.01+2024",
			BlockType:  "html",
			SourcePath: "course-v1:MIT+8.01+2024/Week 1/html/Reading",
			Text:       "body",
			Ordinal:    0,
		},
		Vector: []float32{0.1, 0.2},
	}
	if err := s.Upsert(context.Background(), []domain.VectorRecord{rec}); err != nil {
		t.Fatal(err)
	}

	if len(got.Points) != 1 {
		t.Fatalf("sent %d points, want 1", len(got.Points))
	}
	p := got.Points[0]
	if p.ID != "chunk-1" {
		t.Fatalf("point id = %q, want the chunk id", p.ID)
	}
	if p.Payload["course_id"] != "course-v1:MIT+8.01+2024" || p.Payload["text"] != "body" {
		t.Fatalf("payload = %v", p.Payload)
	}
}

func TestUpsertDimensionGuard(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": 3, "distance": "Cosine"},
				},
			},
		})
	})
	if err := s.Init(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	rec := domain.VectorRecord{Chunk: domain.Chunk{ID: "c1"}, Vector: []float32{1, 2}}
	if err := s.Upsert(context.Background(), []domain.VectorRecord{rec}); err == nil {
		t.Fatal("expected dimension mismatch error before any request")
	}
}

func TestSearchDecodesAndSorts(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/courses/points/search" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["limit"] != float64(5) {
			t.Fatalf("limit = %v, want 5", req["limit"])
		}
		if _, ok := req["filter"]; !ok {
			t.Fatal("course filter missing from search request")
		}
		writeResult(w, []map[string]any{
			{"score": 0.5, "payload": map[string]any{"chunk_id": "low", "text": "b", "ordinal": 1}},
			{"score": 0.9, "payload": map[string]any{"chunk_id": "high", "text": "a", "ordinal": 0}},
		})
	})

	results, err := s.Search(context.Background(), []float32{1, 0}, 5, "course-v1:MIT+8.01+2024")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Chunk.ID != "high" || results[1].Chunk.ID != "low" {
		t.Fatalf("sort order = %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
	if results[0].Score != 0.9 {
		t.Fatalf("top score = %f, want 0.9", results[0].Score)
	}
	if results[1].Chunk.Ordinal != 1 {
		t.Fatalf("ordinal = %d, want 1", results[1].Chunk.Ordinal)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	results, err := s.Search(context.Background(), []float32{1, 0}, 5, "")
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Fatalf("got %d results, want none for a missing collection", len(results))
	}
}

func TestUpsertRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResult(w, true)
	})

	rec := domain.VectorRecord{Chunk: domain.Chunk{ID: "c1"}, Vector: []float32{1, 0}}
	if err := s.Upsert(context.Background(), []domain.VectorRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("made %d requests, want 2 (one retry after the 500)", n)
	}
}

func TestUpsertGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := domain.VectorRecord{Chunk: domain.Chunk{ID: "c1"}, Vector: []float32{1, 0}}
	if err := s.Upsert(context.Background(), []domain.VectorRecord{rec}); err == nil {
		t.Fatal("expected error once retries are exhausted")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("made %d requests, want 3 (initial attempt plus two retries)", n)
	}
}

func TestSearchMissingCollectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := s.Search(context.Background(), []float32{1, 0}, 5, ""); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("made %d requests, want 1 (404 is a domain answer, not transient)", n)
	}
}

func TestSearchServerError(t *testing.T) {
	s, _ := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"status":"error"}`)
	})
	if _, err := s.Search(context.Background(), []float32{1, 0}, 5, ""); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
