package kv

import (
	"context"
	"testing"
	"time"
)

// TestMemoryKV_SetGet 测试内存KV的基本读写.
func TestMemoryKV_SetGet(t *testing.T) {
	ctx := context.Background()

	store, err := NewMemoryKV(ctx, nil)
	if err != nil {
		t.Fatalf("NewMemoryKV failed: %v", err)
	}

	if err := store.Set(ctx, "fp:asset1", []byte("a1b2c3d4"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "fp:asset1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(got) != "a1b2c3d4" {
		t.Errorf("Get returned %q, want %q", got, "a1b2c3d4")
	}

	// 不存在的键
	if _, err := store.Get(ctx, "fp:missing"); err == nil {
		t.Error("Expected error for missing key")
	}
}

// TestMemoryKV_TTLExpiry 测试TTL包装的惰性过期.
func TestMemoryKV_TTLExpiry(t *testing.T) {
	ctx := context.Background()

	store, err := NewMemoryKV(ctx, nil)
	if err != nil {
		t.Fatalf("NewMemoryKV failed: %v", err)
	}

	if err := store.Set(ctx, "fp:ttl", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// TTL 内应可见
	exists, err := store.Exists(ctx, "fp:ttl")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}

	if !exists {
		t.Error("Expected key to exist within TTL")
	}
}

// TestMemoryKV_DeleteAndKeys 测试删除和键列举.
func TestMemoryKV_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()

	store, err := NewMemoryKV(ctx, nil)
	if err != nil {
		t.Fatalf("NewMemoryKV failed: %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := store.Keys(ctx, "*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}

	if len(keys) != 3 {
		t.Errorf("Expected 3 keys, got %d", len(keys))
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := store.Exists(ctx, "b")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}

	if exists {
		t.Error("Expected key b to be deleted")
	}
}

// TestTTLWrapper_EncodeDecode 测试TTL编码解码.
func TestTTLWrapper_EncodeDecode(t *testing.T) {
	raw := []byte("payload")

	// ttl=0 不包装
	out, wrapped, err := encodeWithTTL(raw, 0)
	if err != nil {
		t.Fatalf("encodeWithTTL failed: %v", err)
	}

	if wrapped {
		t.Error("Expected no wrapping for ttl=0")
	}

	if string(out) != string(raw) {
		t.Errorf("Expected passthrough, got %q", out)
	}

	// ttl>0 包装并可解码
	out, wrapped, err = encodeWithTTL(raw, time.Hour)
	if err != nil {
		t.Fatalf("encodeWithTTL failed: %v", err)
	}

	if !wrapped {
		t.Error("Expected wrapping for ttl>0")
	}

	val, expired, wasWrapped, err := decodeWithTTL(out, time.Now())
	if err != nil {
		t.Fatalf("decodeWithTTL failed: %v", err)
	}

	if !wasWrapped || expired {
		t.Errorf("Unexpected decode state: wrapped=%v expired=%v", wasWrapped, expired)
	}

	if string(val) != string(raw) {
		t.Errorf("Decoded %q, want %q", val, raw)
	}

	// 过期检测
	_, expired, _, err = decodeWithTTL(out, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("decodeWithTTL failed: %v", err)
	}

	if !expired {
		t.Error("Expected value to be expired")
	}
}
