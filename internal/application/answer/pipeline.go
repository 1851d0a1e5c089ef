package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rogan-afk/NutriNephra/internal/application/guard"
	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	apperrors "github.com/Rogan-afk/NutriNephra/pkg/errors"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
	"github.com/Rogan-afk/NutriNephra/pkg/tracer"
)

// Request 问答请求
type Request struct {
	Query string
	Mode  Mode
	TopK  int
}

// PipelineOptions 流水线配置
type PipelineOptions struct {
	// RequestTimeout 整条流水线的墙钟超时
	RequestTimeout time.Duration

	// TopK 重排序截断数
	TopK int

	// ConsistencyMaxDroppedFraction 悬空引用比例上限，超过即降级为证据不足
	ConsistencyMaxDroppedFraction float64
}

// PlanRetriever 规划检索能力，由 retrieval.Planner 实现
type PlanRetriever interface {
	Retrieve(ctx context.Context, query string) (*retrieval.PlanResult, error)
}

// FallbackSearcher 关键词兜底检索能力，由 retrieval.KeywordFallback 实现
type FallbackSearcher interface {
	Search(ctx context.Context, query string) []retrieval.Candidate
}

// Pipeline 问答流水线：守卫 -> 规划检索 -> 重排序 -> 生成 -> 安全标注
type Pipeline struct {
	gate      *guard.Gate
	counsel   *guard.Counsel
	planner   PlanRetriever
	reranker  retrieval.Reranker
	fallback  FallbackSearcher
	composers map[Mode]Composer
	cache     Cache
	opts      PipelineOptions
}

// NewPipeline 创建问答流水线。fallback 与 cache 可为 nil（对应能力禁用）。
func NewPipeline(
	gate *guard.Gate,
	counsel *guard.Counsel,
	planner PlanRetriever,
	reranker retrieval.Reranker,
	fallback FallbackSearcher,
	composers map[Mode]Composer,
	cache Cache,
	opts PipelineOptions,
) *Pipeline {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 45 * time.Second
	}
	if opts.TopK <= 0 {
		opts.TopK = 8
	}
	if opts.ConsistencyMaxDroppedFraction <= 0 {
		opts.ConsistencyMaxDroppedFraction = 0.5
	}
	return &Pipeline{
		gate:      gate,
		counsel:   counsel,
		planner:   planner,
		reranker:  reranker,
		fallback:  fallback,
		composers: composers,
		cache:     cache,
		opts:      opts,
	}
}

// Answer 执行一次问答。
// 守卫拒绝与生成不可用通过 AppError 区分暴露，其余失败归为内部错误。
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "answer.Pipeline")
	defer span.End()

	mode := req.Mode
	if !mode.Valid() {
		mode = ModeAnswerOnly
	}

	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	// 检索前守卫
	if verdict, msg := p.gate.Check(req.Query); verdict != guard.VerdictAccepted {
		metrics.PipelineRequestsTotal.WithLabelValues(string(mode), "rejected").Inc()
		logger.Info(ctx, "query rejected by guard", "verdict", string(verdict))
		return nil, apperrors.New(apperrors.CodeInputRejected, msg)
	}

	// 规划检索（失败时尝试缓存降级）
	plan, err := p.planner.Retrieve(ctx, req.Query)
	if err != nil {
		if cached := p.lookupCache(ctx, req.Query, mode); cached != nil {
			metrics.PipelineRequestsTotal.WithLabelValues(string(mode), "cached_degraded").Inc()
			logger.Warn(ctx, "retrieval unavailable, serving cached answer", "error", err)
			return cached, nil
		}
		metrics.PipelineRequestsTotal.WithLabelValues(string(mode), "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeRetrievalUnavailable, "retrieval unavailable")
	}

	composer, ok := p.composers[mode]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInternalError, fmt.Sprintf("no composer for mode %s", mode))
	}

	// 一致性降级：过多悬空引用说明索引与文档存储失配
	var res *Result
	if p.inconsistent(plan) {
		logger.Warn(ctx, "retrieval downgraded for inconsistency",
			"hits", plan.Hits, "dropped", plan.Dropped)
		res = insufficient(mode)
	} else {
		topK := p.opts.TopK
		if req.TopK > 0 && req.TopK < topK {
			topK = req.TopK
		}
		candidates := plan.Candidates
		// 向量检索无候选时的关键词兜底
		if len(candidates) == 0 && p.fallback != nil {
			candidates = p.fallback.Search(ctx, req.Query)
			if len(candidates) > 0 {
				logger.Info(ctx, "vector retrieval empty, keyword fallback engaged",
					"candidates", len(candidates))
			}
		}
		ranked := p.reranker.Rerank(ctx, req.Query, candidates, topK)

		res, err = composer.Compose(ctx, req.Query, ranked)
		switch {
		case err == nil:
		case errors.Is(err, ErrGenerationUnavailable) && ctx.Err() != nil:
			// 墙钟耗尽导致的生成失败降级为标记 partial 的确定性结果
			logger.Warn(ctx, "request deadline exhausted during generation")
			res = insufficient(mode)
			res.Partial = true
		case errors.Is(err, ErrGenerationUnavailable):
			metrics.PipelineRequestsTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, apperrors.Wrap(err, apperrors.CodeGenerationUnavailable, "generation unavailable")
		default:
			metrics.PipelineRequestsTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "answer composition failed")
		}
	}

	res.Partial = res.Partial || plan.Partial
	metrics.PipelineRequestsTotal.WithLabelValues(string(mode), outcome(res)).Inc()

	// 生成后安全标注：只追加，不拦截。证据不足的固定回复不携带标注。
	if !res.Insufficient {
		res.SafetyFlags = append(res.SafetyFlags, p.counsel.Flags(req.Query, res.Answer)...)
	}

	p.storeCache(ctx, req.Query, mode, res)
	return res, nil
}

// inconsistent 判定本次检索是否因悬空引用过多而不可信
func (p *Pipeline) inconsistent(plan *retrieval.PlanResult) bool {
	if plan.Hits == 0 || plan.Dropped == 0 {
		return false
	}
	return float64(plan.Dropped)/float64(plan.Hits) > p.opts.ConsistencyMaxDroppedFraction
}

// lookupCache 读取缓存答案，禁用或未命中返回 nil
func (p *Pipeline) lookupCache(ctx context.Context, query string, mode Mode) *Result {
	if p.cache == nil {
		return nil
	}
	res, err := p.cache.GetAnswer(ctx, query, mode)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.Warn(ctx, "answer cache lookup failed", "error", err)
		}
		return nil
	}
	return res
}

// storeCache 写入缓存。证据不足与部分结果不缓存。
func (p *Pipeline) storeCache(ctx context.Context, query string, mode Mode, res *Result) {
	if p.cache == nil || res.Insufficient || res.Partial {
		return
	}
	if err := p.cache.SetAnswer(ctx, query, mode, res); err != nil {
		logger.Warn(ctx, "answer cache store failed", "error", err)
	}
}

// outcome 指标标签
func outcome(res *Result) string {
	switch {
	case res.Insufficient:
		return "insufficient"
	case res.Partial:
		return "partial"
	default:
		return "answered"
	}
}
