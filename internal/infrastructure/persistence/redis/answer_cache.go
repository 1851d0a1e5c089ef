// Package redis 提供答案缓存与限流的 Redis 实现
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Rogan-afk/NutriNephra/internal/application/answer"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

// staleTTL 降级副本的保留时长，远长于新鲜副本
const staleTTL = 24 * time.Hour

// AnswerCache 答案缓存，实现 answer.Cache。
// 每个答案存两份：新鲜副本按配置 TTL 过期，降级副本保留更久，
// 供检索不可用时兜底。
type AnswerCache struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewAnswerCache 创建答案缓存
func NewAnswerCache(client *Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{client: client, ttl: ttl}
}

var _ answer.Cache = (*AnswerCache)(nil)

// GetAnswer 实现 answer.Cache。先查新鲜副本，未命中再查降级副本。
func (c *AnswerCache) GetAnswer(ctx context.Context, query string, mode answer.Mode) (*answer.Result, error) {
	if c == nil || c.client == nil {
		return nil, answer.ErrCacheMiss
	}
	ctx, span := cacheTracer.Start(ctx, "cache.GetAnswer",
		trace.WithAttributes(attribute.String("cache.mode", string(mode))))
	defer span.End()

	key := answerKey(query, mode)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if val, err := c.client.Get(ctx, key); err == nil {
			metrics.AnswerCacheTotal.WithLabelValues("hit").Inc()
			return val, nil
		} else if !IsNil(err) {
			metrics.AnswerCacheTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		val, err := c.client.Get(ctx, staleKey(key))
		if err == nil {
			metrics.AnswerCacheTotal.WithLabelValues("stale_hit").Inc()
			return val, nil
		}
		if IsNil(err) {
			metrics.AnswerCacheTotal.WithLabelValues("miss").Inc()
			return nil, answer.ErrCacheMiss
		}
		metrics.AnswerCacheTotal.WithLabelValues("error").Inc()
		return nil, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var res answer.Result
	if err := json.Unmarshal(v.([]byte), &res); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached answer: %w", err)
	}
	return &res, nil
}

// SetAnswer 实现 answer.Cache
func (c *AnswerCache) SetAnswer(ctx context.Context, query string, mode answer.Mode, res *answer.Result) error {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, span := cacheTracer.Start(ctx, "cache.SetAnswer",
		trace.WithAttributes(attribute.String("cache.mode", string(mode))))
	defer span.End()

	bytes, err := json.Marshal(res)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	key := answerKey(query, mode)
	if err := c.client.Set(ctx, key, bytes, c.ttl); err != nil {
		span.RecordError(err)
		return err
	}
	return c.client.Set(ctx, staleKey(key), bytes, staleTTL)
}

// answerKey 缓存键：模式 + 规范化查询的哈希
func answerKey(query string, mode answer.Mode) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(norm))
	return fmt.Sprintf("answer:%s:%s", mode, hex.EncodeToString(sum[:16]))
}

// staleKey 降级副本键
func staleKey(key string) string {
	return "stale:" + key
}
