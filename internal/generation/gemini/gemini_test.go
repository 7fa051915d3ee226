package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_GEMINI_KEY", "g-test")
	c, err := NewClient(Config{
		BaseURL:    srv.URL,
		APIKeyEnv:  "TEST_GEMINI_KEY",
		Model:      "gemini-2.5-flash",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func candidateResponse(texts ...string) map[string]any {
	parts := make([]map[string]string, len(texts))
	for i, txt := range texts {
		parts[i] = map[string]string{"text": txt}
	}
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-test" {
			t.Errorf("key query param = %q", r.URL.Query().Get("key"))
		}
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "the prompt" {
			t.Errorf("unexpected request contents: %+v", req.Contents)
		}
		_ = json.NewEncoder(w).Encode(candidateResponse("The ", "answer."))
	})

	got, err := c.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The answer." {
		t.Fatalf("Generate = %q, want joined candidate parts", got)
	}
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(candidateResponse("recovered"))
	})
	got, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if got != "recovered" {
		t.Fatalf("Generate = %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("made %d requests, want 2", n)
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("made %d requests, want 1", n)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("TEST_GEMINI_MISSING", "")
	if _, err := NewClient(Config{APIKeyEnv: "TEST_GEMINI_MISSING"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
