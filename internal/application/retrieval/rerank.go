package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// Reranker 候选重排序 port
type Reranker interface {
	// Rerank 对候选重排序并截断到 topK。输入为空时返回空序列。
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) []RankedCandidate
}

// LexicalReranker 基于词面重叠的重排序器。
// 相关性 = 查询词项在摘要负载中的命中数，命中数相同时退化为向量相似度；
// 排序稳定，同分候选保持输入相对顺序。
type LexicalReranker struct{}

// NewLexicalReranker 创建词面重排序器
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// stopTerms 不参与打分的常见词
var stopTerms = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {},
	"which": {}, "how": {}, "should": {}, "are": {}, "can": {},
	"does": {}, "about": {}, "from": {}, "that": {}, "this": {},
}

// queryTerms 提取参与打分的查询词项
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if len(f) < 3 {
			continue
		}
		if _, stop := stopTerms[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// Rerank 实现 Reranker
func (r *LexicalReranker) Rerank(_ context.Context, query string, candidates []Candidate, topK int) []RankedCandidate {
	if len(candidates) == 0 {
		return []RankedCandidate{}
	}

	terms := queryTerms(query)
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, RankedCandidate{
			Candidate: c,
			Relevance: score(terms, c),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Relevance != ranked[j].Relevance {
			return ranked[i].Relevance > ranked[j].Relevance
		}
		return false
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// score 计算候选相关性。图像负载是 base64 数据，按相似度打分。
func score(terms []string, c Candidate) float64 {
	if c.Modality == entity.ModalityImage || len(terms) == 0 {
		return c.Similarity
	}
	body := strings.ToLower(c.Unit.Payload)
	hits := 0
	for _, t := range terms {
		if strings.Contains(body, t) {
			hits++
		}
	}
	// 词面命中为主，向量相似度兜底打破平分
	return float64(hits) + c.Similarity
}
