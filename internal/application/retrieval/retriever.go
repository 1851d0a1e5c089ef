package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
	"github.com/Rogan-afk/NutriNephra/pkg/tracer"
)

// RetryPolicy 有界重试 + 指数退避
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy 返回默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2.0}
}

// Backoff 返回第 attempt 次失败后的等待时长（attempt 从 0 开始）
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Retriever 多向量检索器。
// 查询向量在摘要索引上按模态召回，命中 id 再到文档存储解析为完整内容单元。
type Retriever struct {
	embedder   embedding.Embedder
	index      SummaryIndex
	store      DocumentStore
	modalities []entity.Modality
	retry      RetryPolicy
}

// NewRetriever 创建多向量检索器
func NewRetriever(embedder embedding.Embedder, index SummaryIndex, store DocumentStore, modalities []entity.Modality, retry RetryPolicy) *Retriever {
	if len(modalities) == 0 {
		modalities = entity.AllModalities()
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Retriever{
		embedder:   embedder,
		index:      index,
		store:      store,
		modalities: modalities,
		retry:      retry,
	}
}

// Retrieve 执行一轮检索：向量化 -> 各模态召回 -> 解析 -> 去重。
// 单个模态失败仅降级该模态；全部模态失败返回 ErrIndexUnavailable。
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return &Result{}, nil
	}

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var hits []*IndexHit
	failed := 0
	for _, m := range r.modalities {
		mh, err := r.searchWithRetry(ctx, vector, k, m)
		if err != nil {
			// 单模态不可用时降级，保留其余模态的结果
			failed++
			logger.Warn(ctx, "modality search degraded",
				"modality", string(m), "error", err)
			continue
		}
		metrics.RetrievalCandidates.WithLabelValues(string(m)).Observe(float64(len(mh)))
		hits = append(hits, mh...)
	}
	if failed == len(r.modalities) {
		return nil, ErrIndexUnavailable
	}

	return r.resolve(ctx, hits)
}

// embedQuery 向量化查询文本
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding for query")
	}
	out := make([]float32, len(vecs[0]))
	for i, f := range vecs[0] {
		out[i] = float32(f)
	}
	return out, nil
}

// searchWithRetry 带退避地检索单个模态
func (r *Retriever) searchWithRetry(ctx context.Context, vector []float32, k int, m entity.Modality) ([]*IndexHit, error) {
	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retry.Backoff(attempt - 1)):
			}
		}
		hits, err := r.index.Search(ctx, vector, k, m)
		if err == nil {
			return hits, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// resolve 将摘要命中解析为内容单元：悬空引用丢弃并计数，重复 id 保留最高相似度
func (r *Retriever) resolve(ctx context.Context, hits []*IndexHit) (*Result, error) {
	if len(hits) == 0 {
		return &Result{}, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ContentID)
	}
	units, err := r.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	best := make(map[string]int, len(hits)) // content_id -> index in out
	out := make([]Candidate, 0, len(hits))
	dropped := 0
	for _, h := range hits {
		unit, ok := units[h.ContentID]
		if !ok {
			dropped++
			metrics.ConsistencyDropsTotal.Inc()
			logger.Warn(ctx, "dangling summary reference dropped", "content_id", h.ContentID)
			continue
		}
		if i, seen := best[h.ContentID]; seen {
			if h.Similarity > out[i].Similarity {
				out[i].Similarity = h.Similarity
			}
			continue
		}
		best[h.ContentID] = len(out)
		out = append(out, Candidate{
			ContentID:  h.ContentID,
			Modality:   h.Modality,
			Similarity: h.Similarity,
			Unit:       unit,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})

	return &Result{Candidates: out, Hits: len(hits), Dropped: dropped}, nil
}
