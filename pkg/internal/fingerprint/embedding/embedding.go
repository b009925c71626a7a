// Package embedding 实现语义嵌入客户端（OpenAI兼容端点）.
//
// 嵌入是指纹的可选增强：任何失败（端点不可用、配额、网络）都降级为
// "无嵌入" 并记录 warn 日志，绝不向调用方抛出.
// 客户端内置限流、熔断与按内容哈希的结果缓存.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/cache"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/metrics"
)

// Embedder 语义嵌入提供方.
// Embed 返回 nil 向量表示 "无嵌入"，实现不得因提供方故障返回错误以外的 panic.
type Embedder interface {
	Embed(ctx context.Context, text string) (*types.Embedding, error)
}

// NoopEmbedder 未配置提供方时的占位实现，永远返回无嵌入.
type NoopEmbedder struct{}

// Embed 恒定返回 nil.
func (NoopEmbedder) Embed(_ context.Context, _ string) (*types.Embedding, error) {
	return nil, nil
}

// Client 调用 OpenAI 兼容 /embeddings 端点的嵌入客户端.
type Client struct {
	cfg     *configs.EmbeddingConfig
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *cache.Cache
}

// NewClient 创建嵌入客户端，cacheStore 可为 nil（不缓存）.
func NewClient(cfg *configs.EmbeddingConfig, c *cache.Cache) *Client {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
	})

	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.GetTimeoutDuration()},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,
		cache:   c,
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 请求文本嵌入.
// 超长文本截断到 MaxChars；失败返回错误由上层降级，不中断指纹生成.
func (c *Client) Embed(ctx context.Context, text string) (*types.Embedding, error) {
	text = Truncate(text, c.cfg.MaxChars)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	key := CacheKey(c.cfg.Model, text)

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if hit, err := cache.Get[*types.Embedding](ctx, c.cache, key); err == nil && hit != nil {
			metrics.EmbeddingRequests.WithLabelValues("cache_hit").Inc()
			return hit, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.requestEmbedding(ctx, text)
	})
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("failure").Inc()
		return nil, err
	}

	emb := result.(*types.Embedding)
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	if c.cache != nil && c.cfg.CacheTTL > 0 {
		if err := cache.Set(ctx, c.cache, key, emb, c.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("嵌入结果写缓存失败")
		}
	}

	return emb, nil
}

// requestEmbedding 执行一次 HTTP 嵌入调用.
func (c *Client) requestEmbedding(ctx context.Context, text string) (*types.Embedding, error) {
	body, err := sonic.Marshal(embeddingRequest{Input: text, Model: c.cfg.Model})
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/embeddings"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, truncateForLog(raw))
	}

	var parsed embeddingResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}

	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contains no vector")
	}

	model := parsed.Model
	if model == "" {
		model = c.cfg.Model
	}

	return &types.Embedding{
		Vector: parsed.Data[0].Embedding,
		Model:  model,
	}, nil
}

// Truncate 按字符数截断文本，按 rune 边界切分.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	return string(runes[:maxChars])
}

// CacheKey 生成模型+内容哈希的缓存键.
func CacheKey(model, text string) string {
	return "emb:" + model + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

func truncateForLog(raw []byte) string {
	const maxLen = 256
	s := string(raw)
	if len(s) > maxLen {
		return s[:maxLen]
	}

	return s
}

// FromConfig 按配置装配 Embedder: 未启用返回 NoopEmbedder.
func FromConfig(cfg *configs.EmbeddingConfig, c *cache.Cache) Embedder {
	if cfg == nil || !cfg.Enabled {
		return NoopEmbedder{}
	}

	return NewClient(cfg, c)
}
