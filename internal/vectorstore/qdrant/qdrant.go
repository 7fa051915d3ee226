// Package qdrant is a minimal REST client to Qdrant. It assumes cosine
// distance and creates the collection if missing. Point ids are the
// deterministic chunk ids, so upserts overwrite rather than duplicate.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"edurag/internal/domain"
)

type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	maxRetries int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     apiKey,
		collection: cfg.Collection,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection with cosine distance if it does not exist.
// An existing collection with a different vector size is a fatal
// configuration error.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	s.dimension = dimension

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	status, err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if status, err := s.doJSON(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
			return err
		} else if status >= 300 {
			return fmt.Errorf("qdrant: create collection %q failed: status %d", s.collection, status)
		}
		return nil
	case status >= 300:
		return fmt.Errorf("qdrant: collection %q lookup failed: status %d", s.collection, status)
	}
	if size := info.Config.Params.Vectors.Size; size != 0 && size != dimension {
		return fmt.Errorf("qdrant: collection %q vector size mismatch: expected %d, found %d",
			s.collection, dimension, size)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return fmt.Errorf("qdrant: vector %q dimension mismatch: expected %d got %d",
				r.Chunk.ID, s.dimension, len(r.Vector))
		}
		points[i] = map[string]any{
			"id":     r.Chunk.ID,
			"vector": r.Vector,
			"payload": map[string]any{
				"chunk_id":     r.Chunk.ID,
				"block_id":     r.Chunk.BlockID,
				"course_id":    r.Chunk.CourseID,
				"block_type":   r.Chunk.BlockType,
				"display_name": r.Chunk.DisplayName,
				"source_path":  r.Chunk.SourcePath,
				"text":         r.Chunk.Text,
				"ordinal":      r.Chunk.Ordinal,
			},
		}
	}
	body := map[string]any{"points": points}
	status, err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant: upsert failed: status %d", status)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, courseID string) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if courseID != "" {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "course_id", "match": map[string]any{"value": courseID}},
			},
		}
	}
	var raw []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	status, err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &raw)
	if err != nil {
		return nil, err
	}
	// A collection that was never indexed is an empty result, not an error.
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant: search failed: status %d", status)
	}

	results := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		results = append(results, domain.SearchResult{
			Chunk: chunkFromPayload(r.Payload),
			Score: r.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Chunk.ID < results[j].Chunk.ID
		}
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	chunk := domain.Chunk{}
	if v, ok := payload["chunk_id"].(string); ok {
		chunk.ID = v
	}
	if v, ok := payload["block_id"].(string); ok {
		chunk.BlockID = v
	}
	if v, ok := payload["course_id"].(string); ok {
		chunk.CourseID = v
	}
	if v, ok := payload["block_type"].(string); ok {
		chunk.BlockType = v
	}
	if v, ok := payload["display_name"].(string); ok {
		chunk.DisplayName = v
	}
	if v, ok := payload["source_path"].(string); ok {
		chunk.SourcePath = v
	}
	if v, ok := payload["text"].(string); ok {
		chunk.Text = v
	}
	if v, ok := payload["ordinal"].(float64); ok {
		chunk.Ordinal = int(v)
	}
	return chunk
}

// doJSON performs a request and decodes the Qdrant envelope's result
// field into out. Transient failures (429, 5xx, network) are retried with
// bounded backoff; the final HTTP status is returned so callers can treat
// 404 as domain-specific rather than an error.
func (s *Storage) doJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var data []byte
	if in != nil {
		var err error
		data, err = json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("qdrant: encode request: %w", err)
		}
	}
	var lastStatus int
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt-1)); err != nil {
				return 0, err
			}
		}
		status, err := s.roundTrip(ctx, method, path, data, out)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastStatus, lastErr = 0, err
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastStatus, lastErr = status, nil
			continue
		}
		return status, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("qdrant: %s %s exhausted retries: %w", method, path, lastErr)
	}
	return lastStatus, nil
}

func (s *Storage) roundTrip(ctx context.Context, method, path string, data []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant: decode envelope: %w", err)
		}
		if len(envelope.Result) > 0 && string(envelope.Result) != "null" {
			if err := json.Unmarshal(envelope.Result, out); err != nil {
				return resp.StatusCode, fmt.Errorf("qdrant: decode result: %w", err)
			}
		}
	}
	return resp.StatusCode, nil
}

func (s *Storage) collectionPath(suffix string) string {
	return "/collections/" + s.collection + suffix
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
