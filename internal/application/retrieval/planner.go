package retrieval

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
	"github.com/Rogan-afk/NutriNephra/pkg/tracer"
)

// Classifier 查询复杂度分类器
type Classifier interface {
	Classify(query string) Complexity
}

// complexKeywords 触发复杂判定的信号词
var complexKeywords = []string{
	"compare", "comparison", "versus", " vs ", " vs.",
	"evidence", "systematic", "meta-analysis", "mechanism",
	"difference between", "trade-off", "tradeoff",
}

// HeuristicClassifier 基于词数与信号词的启发式分类器
type HeuristicClassifier struct {
	// TokenThreshold 词数达到该值即判定为复杂
	TokenThreshold int
}

// NewHeuristicClassifier 创建启发式分类器
func NewHeuristicClassifier(tokenThreshold int) *HeuristicClassifier {
	if tokenThreshold <= 0 {
		tokenThreshold = 18
	}
	return &HeuristicClassifier{TokenThreshold: tokenThreshold}
}

// Classify 判定查询复杂度
func (c *HeuristicClassifier) Classify(query string) Complexity {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ComplexitySimple
	}
	if len(strings.Fields(q)) >= c.TokenThreshold {
		return ComplexityComplex
	}
	for _, kw := range complexKeywords {
		if strings.Contains(q, kw) {
			return ComplexityComplex
		}
	}
	// 多个并列子句视为复杂
	if strings.Count(q, " and ")+strings.Count(q, ";")+strings.Count(q, "?") >= 2 {
		return ComplexityComplex
	}
	return ComplexitySimple
}

// clauseSplitRe 子句切分边界
var clauseSplitRe = regexp.MustCompile(`(?i)\s*(?:;|\band\b|\bas well as\b|\bversus\b|\bvs\.?\b|\bcompared (?:to|with)\b)\s*|\?\s*`)

// expandQuery 将复杂查询切分为子查询。
// 过短或与原查询等价的片段不计入。
func expandQuery(query string) []string {
	parts := clauseSplitRe.Split(query, -1)
	var subs []string
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(query)): {}}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(strings.Fields(p)) < 2 {
			continue
		}
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		subs = append(subs, p)
	}
	return subs
}

// Planner 查询规划器。
// 简单查询执行单轮检索；复杂查询拆分为多轮并发检索后按轮次顺序合并。
type Planner struct {
	retriever    roundRetriever
	classifier   Classifier
	kInitial     int
	kExpand      int
	maxRounds    int
	roundTimeout time.Duration
}

// roundRetriever 单轮检索能力，由 Retriever 实现
type roundRetriever interface {
	Retrieve(ctx context.Context, query string, k int) (*Result, error)
}

// NewPlanner 创建查询规划器
func NewPlanner(retriever roundRetriever, classifier Classifier, kInitial, kExpand, maxRounds int, roundTimeout time.Duration) *Planner {
	if kInitial <= 0 {
		kInitial = 6
	}
	if kExpand <= 0 {
		kExpand = 10
	}
	if maxRounds <= 0 {
		maxRounds = 3
	}
	if roundTimeout <= 0 {
		roundTimeout = 5 * time.Second
	}
	return &Planner{
		retriever:    retriever,
		classifier:   classifier,
		kInitial:     kInitial,
		kExpand:      kExpand,
		maxRounds:    maxRounds,
		roundTimeout: roundTimeout,
	}
}

// round 一轮检索的计划与结果
type round struct {
	query  string
	k      int
	result *Result
	err    error
}

// Retrieve 按复杂度执行检索并合并结果
func (p *Planner) Retrieve(ctx context.Context, query string) (*PlanResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Plan")
	defer span.End()

	complexity := p.classifier.Classify(query)

	rounds := []*round{{query: query, k: p.kInitial}}
	if complexity == ComplexityComplex {
		for _, sub := range expandQuery(query) {
			if len(rounds) >= p.maxRounds {
				break
			}
			rounds = append(rounds, &round{query: sub, k: p.kExpand})
		}
	}

	// 并发派发各轮，每轮独立超时
	var g errgroup.Group
	for _, rd := range rounds {
		rd := rd
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, p.roundTimeout)
			defer cancel()
			rd.result, rd.err = p.retriever.Retrieve(rctx, rd.query, rd.k)
			return nil
		})
	}
	_ = g.Wait()

	return p.merge(ctx, query, complexity, rounds)
}

// merge 按轮次顺序合并：同 id 先到轮次优先，仅当后轮相似度严格更高时覆盖分数。
// 某轮未贡献任何新 id 时停止合并后续轮次；超时或出错的轮次被丢弃并标记 partial。
func (p *Planner) merge(ctx context.Context, query string, complexity Complexity, rounds []*round) (*PlanResult, error) {
	res := &PlanResult{Complexity: complexity}
	index := make(map[string]int)
	var merged []Candidate
	var firstErr error

	for _, rd := range rounds {
		if rd.err != nil {
			if errors.Is(rd.err, context.DeadlineExceeded) {
				res.Partial = true
				metrics.PlannerRoundTimeoutsTotal.Inc()
				logger.Warn(ctx, "planner round dropped on timeout", "sub_query", rd.query)
				continue
			}
			if firstErr == nil {
				firstErr = rd.err
			}
			// 因错误被丢弃的轮次同样使结果降级为 partial
			res.Partial = true
			logger.Warn(ctx, "planner round dropped on error",
				"sub_query", rd.query, "error", rd.err)
			continue
		}
		res.RoundsExecuted++
		res.Hits += rd.result.Hits
		res.Dropped += rd.result.Dropped

		added := 0
		for _, c := range rd.result.Candidates {
			if i, ok := index[c.ContentID]; ok {
				if c.Similarity > merged[i].Similarity {
					merged[i].Similarity = c.Similarity
				}
				continue
			}
			index[c.ContentID] = len(merged)
			merged = append(merged, c)
			added++
		}
		if added == 0 {
			break
		}
	}

	if len(merged) == 0 && firstErr != nil {
		return nil, firstErr
	}

	metrics.PlannerRoundsExecuted.WithLabelValues(string(complexity)).Observe(float64(res.RoundsExecuted))
	logger.Debug(ctx, "plan merged",
		"query", query,
		"complexity", string(complexity),
		"rounds", res.RoundsExecuted,
		"candidates", len(merged),
		"dropped", res.Dropped,
		"partial", res.Partial)

	res.Candidates = merged
	return res, nil
}
