package answer

import (
	"context"
	"time"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
	"github.com/Rogan-afk/NutriNephra/pkg/tracer"
)

// Composer 答案合成器：一种生成模式对应一个实现
type Composer interface {
	Compose(ctx context.Context, query string, ranked []retrieval.RankedCandidate) (*Result, error)
}

// ComposerOptions 合成器共享配置
type ComposerOptions struct {
	MaxOutputChars int
	Retry          retrieval.RetryPolicy
}

// answerOnly 仅返回答案文本的合成器
type answerOnly struct {
	gen  Generation
	opts ComposerOptions
}

// NewAnswerOnly 创建 answer_only 模式合成器
func NewAnswerOnly(gen Generation, opts ComposerOptions) Composer {
	return &answerOnly{gen: gen, opts: normalize(opts)}
}

// Compose 实现 Composer
func (c *answerOnly) Compose(ctx context.Context, query string, ranked []retrieval.RankedCandidate) (*Result, error) {
	if len(ranked) == 0 {
		return insufficient(ModeAnswerOnly), nil
	}
	prompt := buildPrompt(query, ranked, false)
	raw, err := generateWithRetry(ctx, c.gen, prompt, c.opts.Retry)
	if err != nil {
		return nil, err
	}
	return &Result{
		Answer:      tighten(raw, c.opts.MaxOutputChars),
		Mode:        ModeAnswerOnly,
		Citations:   []Citation{},
		SafetyFlags: []string{},
	}, nil
}

// agenticWithSources 带内联引用标记与引用列表的合成器
type agenticWithSources struct {
	gen  Generation
	opts ComposerOptions
}

// NewAgenticWithSources 创建 agentic_with_sources 模式合成器
func NewAgenticWithSources(gen Generation, opts ComposerOptions) Composer {
	return &agenticWithSources{gen: gen, opts: normalize(opts)}
}

// Compose 实现 Composer。
// 引用列表由送入生成的上下文推导：每个内容单元恰好出现一次，
// 顺序为首次被引用（即进入上下文）的顺序，与模型输出无关。
func (c *agenticWithSources) Compose(ctx context.Context, query string, ranked []retrieval.RankedCandidate) (*Result, error) {
	if len(ranked) == 0 {
		return insufficient(ModeAgenticWithSources), nil
	}
	prompt := buildPrompt(query, ranked, true)
	raw, err := generateWithRetry(ctx, c.gen, prompt, c.opts.Retry)
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, 0, len(ranked))
	for _, rc := range ranked {
		snippet := ""
		if rc.Modality != entity.ModalityImage {
			snippet = shortSnippet(rc.Unit.Payload)
		}
		citations = append(citations, Citation{
			ContentID: rc.ContentID,
			SourceRef: rc.Unit.SourceRef,
			Snippet:   snippet,
		})
	}

	return &Result{
		Answer:      tighten(raw, c.opts.MaxOutputChars),
		Mode:        ModeAgenticWithSources,
		Citations:   citations,
		SafetyFlags: []string{},
	}, nil
}

// generateWithRetry 有界重试 + 指数退避，耗尽后返回 ErrGenerationUnavailable
func generateWithRetry(ctx context.Context, gen Generation, prompt Prompt, retry retrieval.RetryPolicy) (string, error) {
	ctx, span := tracer.Start(ctx, "answer.Generate")
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.GenerationRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return "", ErrGenerationUnavailable
			case <-time.After(retry.Backoff(attempt - 1)):
			}
		}
		raw, err := gen.Generate(ctx, prompt)
		if err == nil && raw != "" {
			return raw, nil
		}
		lastErr = err
		logger.Warn(ctx, "generation attempt failed", "attempt", attempt+1, "error", err)
	}
	logger.Error(ctx, "generation retries exhausted", lastErr)
	return "", ErrGenerationUnavailable
}

// insufficient 证据不足的确定性结果
func insufficient(mode Mode) *Result {
	return &Result{
		Answer:       InsufficientEvidence,
		Mode:         mode,
		Citations:    []Citation{},
		SafetyFlags:  []string{},
		Insufficient: true,
	}
}

// normalize 填充合成器配置默认值
func normalize(opts ComposerOptions) ComposerOptions {
	if opts.MaxOutputChars <= 0 {
		opts.MaxOutputChars = 2400
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retrieval.RetryPolicy{MaxAttempts: 3, Initial: 500 * time.Millisecond, Max: 8 * time.Second, Multiplier: 2.0}
	}
	return opts
}
