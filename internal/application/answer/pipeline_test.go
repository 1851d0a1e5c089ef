package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogan-afk/NutriNephra/internal/application/guard"
	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	apperrors "github.com/Rogan-afk/NutriNephra/pkg/errors"
)

// fakePlanner 返回预设规划结果
type fakePlanner struct {
	plan  *retrieval.PlanResult
	err   error
	calls int
}

func (f *fakePlanner) Retrieve(_ context.Context, _ string) (*retrieval.PlanResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

type fakeCache struct {
	store map[string]*Result
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]*Result{}}
}

func cacheKey(query string, mode Mode) string {
	return query + "|" + string(mode)
}

func (f *fakeCache) GetAnswer(_ context.Context, query string, mode Mode) (*Result, error) {
	if res, ok := f.store[cacheKey(query, mode)]; ok {
		return res, nil
	}
	return nil, ErrCacheMiss
}

func (f *fakeCache) SetAnswer(_ context.Context, query string, mode Mode, res *Result) error {
	f.store[cacheKey(query, mode)] = res
	f.sets++
	return nil
}

// fakeFallback 固定返回预设候选
type fakeFallback struct {
	cands []retrieval.Candidate
	calls int
}

func (f *fakeFallback) Search(_ context.Context, _ string) []retrieval.Candidate {
	f.calls++
	return f.cands
}

func newTestPipeline(planner PlanRetriever, gen Generation, cache Cache) *Pipeline {
	return newTestPipelineWithFallback(planner, gen, cache, nil)
}

func newTestPipelineWithFallback(planner PlanRetriever, gen Generation, cache Cache, fallback FallbackSearcher) *Pipeline {
	composers := map[Mode]Composer{
		ModeAnswerOnly:         NewAnswerOnly(gen, fastComposerOpts()),
		ModeAgenticWithSources: NewAgenticWithSources(gen, fastComposerOpts()),
	}
	rules := guard.CounselRules{
		SodiumMgMax:       2000,
		PotassiumMgLimit:  2500,
		PhosphorusMgLimit: 1000,
		HazardFoods: map[string]string{
			"starfruit": "starfruit is unsafe with reduced kidney function",
		},
	}
	return NewPipeline(
		guard.NewGate(3, 3),
		guard.NewCounsel(rules),
		planner,
		retrieval.NewLexicalReranker(),
		fallback,
		composers,
		cache,
		PipelineOptions{RequestTimeout: 5 * time.Second, TopK: 8, ConsistencyMaxDroppedFraction: 0.5},
	)
}

func planWith(cands ...retrieval.Candidate) *retrieval.PlanResult {
	return &retrieval.PlanResult{
		Candidates:     cands,
		Complexity:     retrieval.ComplexitySimple,
		RoundsExecuted: 1,
		Hits:           len(cands),
	}
}

func TestPipelineGuardRejectionSkipsRetrieval(t *testing.T) {
	planner := &fakePlanner{plan: planWith()}
	p := newTestPipeline(planner, &fakeGen{}, nil)

	_, err := p.Answer(context.Background(), Request{Query: "??", Mode: ModeAnswerOnly})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInputRejected, apperrors.AsAppError(err).Code)
	assert.Equal(t, 0, planner.calls)
}

func TestPipelineAnswersAndDefaultsMode(t *testing.T) {
	planner := &fakePlanner{plan: planWith(
		rankedText("a", "guide.md#0", "keep sodium under two grams daily", 0.9).Candidate,
	)}
	gen := &fakeGen{responses: []string{"Keep sodium under two grams daily."}}
	p := newTestPipeline(planner, gen, nil)

	res, err := p.Answer(context.Background(), Request{Query: "how much sodium per day"})
	require.NoError(t, err)
	assert.Equal(t, ModeAnswerOnly, res.Mode)
	assert.False(t, res.Insufficient)
	assert.True(t, strings.HasSuffix(res.Answer, fixedNote))
}

func TestPipelineConsistencyDowngrade(t *testing.T) {
	plan := planWith(
		rankedText("a", "guide.md#0", "sodium guidance", 0.9).Candidate,
	)
	plan.Hits = 10
	plan.Dropped = 6
	gen := &fakeGen{responses: []string{"Should never be used."}}
	p := newTestPipeline(&fakePlanner{plan: plan}, gen, nil)

	res, err := p.Answer(context.Background(), Request{Query: "sodium limits on dialysis", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Equal(t, InsufficientEvidence, res.Answer)
	// 降级路径不触发生成
	assert.Equal(t, 0, gen.calls)
}

func TestPipelinePropagatesPartial(t *testing.T) {
	plan := planWith(
		rankedText("a", "guide.md#0", "sodium guidance", 0.9).Candidate,
	)
	plan.Partial = true
	gen := &fakeGen{responses: []string{"Limit sodium daily."}}
	cache := newFakeCache()
	p := newTestPipeline(&fakePlanner{plan: plan}, gen, cache)

	res, err := p.Answer(context.Background(), Request{Query: "sodium limits on dialysis", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	// 部分结果不写缓存
	assert.Equal(t, 0, cache.sets)
}

func TestPipelineRetrievalErrorWithoutCache(t *testing.T) {
	planner := &fakePlanner{err: errors.New("milvus unreachable")}
	p := newTestPipeline(planner, &fakeGen{}, nil)

	_, err := p.Answer(context.Background(), Request{Query: "potassium in bananas", Mode: ModeAnswerOnly})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRetrievalUnavailable, apperrors.AsAppError(err).Code)
}

func TestPipelineRetrievalErrorServesCachedAnswer(t *testing.T) {
	cache := newFakeCache()
	cached := &Result{Answer: "- Cached bullet.\n\n" + fixedNote, Mode: ModeAnswerOnly, Citations: []Citation{}, SafetyFlags: []string{}}
	cache.store[cacheKey("potassium in bananas", ModeAnswerOnly)] = cached

	planner := &fakePlanner{err: errors.New("milvus unreachable")}
	p := newTestPipeline(planner, &fakeGen{}, cache)

	res, err := p.Answer(context.Background(), Request{Query: "potassium in bananas", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.Equal(t, cached.Answer, res.Answer)
}

func TestPipelineAppendsSafetyFlags(t *testing.T) {
	planner := &fakePlanner{plan: planWith(
		rankedText("a", "guide.md#0", "starfruit contains neurotoxins", 0.9).Candidate,
	)}
	gen := &fakeGen{responses: []string{"Avoid starfruit entirely."}}
	p := newTestPipeline(planner, gen, nil)

	res, err := p.Answer(context.Background(), Request{Query: "is starfruit safe to eat", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	require.NotEmpty(t, res.SafetyFlags)
	assert.True(t, strings.HasPrefix(res.SafetyFlags[0], "hazard:starfruit:"))
	// 标注只追加，不改写答案正文
	assert.Contains(t, res.Answer, "Avoid starfruit")
}

func TestPipelineCachesSuccessfulAnswer(t *testing.T) {
	planner := &fakePlanner{plan: planWith(
		rankedText("a", "guide.md#0", "sodium guidance", 0.9).Candidate,
	)}
	gen := &fakeGen{responses: []string{"Limit sodium daily."}}
	cache := newFakeCache()
	p := newTestPipeline(planner, gen, cache)

	_, err := p.Answer(context.Background(), Request{Query: "how much sodium per day", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestPipelineKeywordFallbackOnEmptyRetrieval(t *testing.T) {
	fallback := &fakeFallback{cands: []retrieval.Candidate{
		rankedText("fb", "guide.md#4", "sodium guidance from keyword match", 0.4).Candidate,
	}}
	gen := &fakeGen{responses: []string{"Limit sodium daily."}}
	p := newTestPipelineWithFallback(&fakePlanner{plan: planWith()}, gen, nil, fallback)

	res, err := p.Answer(context.Background(), Request{Query: "how much sodium per day", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	assert.False(t, res.Insufficient)
	assert.Contains(t, res.Answer, "Limit sodium daily")
}

func TestPipelineFallbackEmptyStillInsufficient(t *testing.T) {
	fallback := &fakeFallback{}
	p := newTestPipelineWithFallback(&fakePlanner{plan: planWith()}, &fakeGen{}, nil, fallback)

	res, err := p.Answer(context.Background(), Request{Query: "obscure nutrient question", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)
	assert.True(t, res.Insufficient)
}

func TestPipelineInsufficientCarriesNoSafetyFlags(t *testing.T) {
	// 查询提及危害食物，但证据不足的固定回复不携带安全标注
	p := newTestPipeline(&fakePlanner{plan: planWith()}, &fakeGen{}, nil)

	res, err := p.Answer(context.Background(), Request{Query: "is starfruit safe to eat", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Equal(t, InsufficientEvidence, res.Answer)
	assert.Empty(t, res.SafetyFlags)
}

// slowGen 在 ctx 取消前阻塞
type slowGen struct {
	delay time.Duration
}

func (g *slowGen) Generate(ctx context.Context, _ Prompt) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(g.delay):
		return "Too late.", nil
	}
}

func TestPipelineDeadlineDuringGenerationYieldsPartial(t *testing.T) {
	planner := &fakePlanner{plan: planWith(
		rankedText("a", "guide.md#0", "sodium guidance", 0.9).Candidate,
	)}
	composers := map[Mode]Composer{
		ModeAnswerOnly: NewAnswerOnly(&slowGen{delay: time.Second}, fastComposerOpts()),
	}
	p := NewPipeline(
		guard.NewGate(3, 3),
		guard.NewCounsel(guard.CounselRules{}),
		planner,
		retrieval.NewLexicalReranker(),
		nil,
		composers,
		nil,
		PipelineOptions{RequestTimeout: 30 * time.Millisecond, TopK: 8, ConsistencyMaxDroppedFraction: 0.5},
	)

	res, err := p.Answer(context.Background(), Request{Query: "how much sodium per day", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.SafetyFlags)
}

func TestPipelineDoesNotCacheInsufficient(t *testing.T) {
	planner := &fakePlanner{plan: planWith()}
	cache := newFakeCache()
	p := newTestPipeline(planner, &fakeGen{}, cache)

	res, err := p.Answer(context.Background(), Request{Query: "obscure nutrient question", Mode: ModeAnswerOnly})
	require.NoError(t, err)
	assert.True(t, res.Insufficient)
	assert.Equal(t, 0, cache.sets)
}
