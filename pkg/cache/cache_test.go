package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/cache"
)

// embeddingEntry 测试用的嵌入缓存结构体.
type embeddingEntry struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
	Dim    int       `json:"dim"`
}

// mockKVStore 模拟KV存储实现.
type mockKVStore struct {
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{
		data: make(map[string][]byte),
	}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if value, exists := m.data[key]; exists {
		return value, nil
	}

	return nil, fmt.Errorf("key not found")
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data[key]
	return exists, nil
}

func (m *mockKVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}

	return keys, nil
}

func (m *mockKVStore) Close() error {
	return nil
}

// TestNewCache 测试 NewCache 函数.
func TestNewCache(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)

	if c == nil {
		t.Fatal("NewCache returned nil")
	}
}

// TestCache_GetSet 测试 Get 和 Set 方法.
func TestCache_GetSet(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	// 测试获取不存在的键
	_, err := cache.Get[embeddingEntry](ctx, c, "emb:missing")
	if err == nil {
		t.Error("Expected error for nonexistent key")
	}

	entry := embeddingEntry{Model: "text-embedding-3-small", Vector: []float32{0.1, 0.2, 0.3}, Dim: 3}

	err = cache.Set(ctx, c, "emb:abc", entry, 0)
	if err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	got, err := cache.Get[embeddingEntry](ctx, c, "emb:abc")
	if err != nil {
		t.Fatalf("Failed to get cache: %v", err)
	}

	if got.Model != entry.Model || got.Dim != entry.Dim || len(got.Vector) != len(entry.Vector) {
		t.Errorf("Cached entry mismatch: got %+v, want %+v", got, entry)
	}
}

// TestCache_Delete 测试 Delete 方法.
func TestCache_Delete(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	if err := cache.Set(ctx, c, "emb:del", embeddingEntry{Dim: 1}, 0); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	if err := c.Delete(ctx, "emb:del"); err != nil {
		t.Fatalf("Failed to delete cache: %v", err)
	}

	exists, err := c.Exists(ctx, "emb:del")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}

	if exists {
		t.Error("Expected key to be deleted")
	}
}

// TestCache_GetOrSet 测试 GetOrSet 方法.
func TestCache_GetOrSet(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	calls := 0
	getter := func() (embeddingEntry, error) {
		calls++
		return embeddingEntry{Model: "m", Vector: []float32{1}, Dim: 1}, nil
	}

	// 首次调用应触发 getter
	v1, err := cache.GetOrSet(ctx, c, "emb:gos", getter, time.Minute)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}

	if v1.Dim != 1 {
		t.Errorf("Unexpected value: %+v", v1)
	}

	// 第二次调用应命中缓存，getter 不再执行
	_, err = cache.GetOrSet(ctx, c, "emb:gos", getter, time.Minute)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected getter to be called once, got %d", calls)
	}
}

// TestCache_Clear 测试 Clear 方法.
func TestCache_Clear(t *testing.T) {
	mockStore := newMockKVStore()
	c := cache.NewCache(mockStore)
	ctx := context.Background()

	for i := range 3 {
		if err := cache.Set(ctx, c, fmt.Sprintf("emb:%d", i), embeddingEntry{Dim: i}, 0); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for i := range 3 {
		exists, err := c.Exists(ctx, fmt.Sprintf("emb:%d", i))
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}

		if exists {
			t.Errorf("Expected key emb:%d to be cleared", i)
		}
	}
}
