package embedding

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
)

func testConfig(endpoint string) *configs.EmbeddingConfig {
	return &configs.EmbeddingConfig{
		Enabled:     true,
		Endpoint:    endpoint,
		Model:       "text-embedding-3-small",
		MaxChars:    configs.DefaultEmbeddingMaxChars,
		Timeout:     5,
		RPS:         100,
		Burst:       10,
		MaxFailures: 3,
		OpenTimeout: time.Second,
	}
}

func TestClient_Embed(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	got, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Vector) != 3 {
		t.Errorf("vector dim = %d, want 3", len(got.Vector))
	}
	if got.Model != "text-embedding-3-small" {
		t.Errorf("model = %s", got.Model)
	}
	if !strings.Contains(gotBody, `"input":"hello"`) {
		t.Errorf("request body missing input: %s", gotBody)
	}
}

func TestClient_Embed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from 429 response")
	}
}

func TestClient_Embed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestClient_Embed_BlankInput(t *testing.T) {
	c := NewClient(testConfig("http://unreachable.invalid"), nil)

	got, err := c.Embed(context.Background(), "   \n ")
	if err != nil {
		t.Fatalf("blank input should not call endpoint: %v", err)
	}
	if got != nil {
		t.Error("blank input should yield no embedding")
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxFailures = 2
	c := NewClient(cfg, nil)

	for i := 0; i < 5; i++ {
		_, _ = c.Embed(context.Background(), "hello")
	}

	// 熔断后不再打到端点.
	if calls > 2 {
		t.Errorf("endpoint called %d times, want breaker to open after 2", calls)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 3); got != "hel" {
		t.Errorf("Truncate = %q, want hel", got)
	}
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short input changed: %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("rune boundary broken: %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Errorf("zero cap should be no-op: %q", got)
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey("m", "text")
	b := CacheKey("m", "text")
	if a != b {
		t.Error("same input produced different keys")
	}
	if a == CacheKey("m", "other") {
		t.Error("different text produced same key")
	}
	if a == CacheKey("m2", "text") {
		t.Error("different model produced same key")
	}
	if !strings.HasPrefix(a, "emb:m:") {
		t.Errorf("key prefix wrong: %s", a)
	}
}

func TestNoopEmbedder(t *testing.T) {
	got, err := NoopEmbedder{}.Embed(context.Background(), "anything")
	if err != nil || got != nil {
		t.Errorf("noop = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(nil, nil).(NoopEmbedder); !ok {
		t.Error("nil config should yield noop")
	}
	if _, ok := FromConfig(&configs.EmbeddingConfig{Enabled: false}, nil).(NoopEmbedder); !ok {
		t.Error("disabled config should yield noop")
	}
	cfg := testConfig("http://localhost:9999")
	if _, ok := FromConfig(cfg, nil).(*Client); !ok {
		t.Error("enabled config should yield client")
	}
}
