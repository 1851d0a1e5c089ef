package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

// UnitLister 全量内容单元访问能力，由文档存储实现
type UnitLister interface {
	All() []*entity.ContentUnit
}

// KeywordFallback 关键词兜底检索器。
// 向量检索无候选时对文档存储做词面打分，提供降级上下文。
// 只覆盖文本与表格单元，图像负载无词面可匹配。
type KeywordFallback struct {
	lister UnitLister
	k      int
}

// NewKeywordFallback 创建关键词兜底检索器
func NewKeywordFallback(lister UnitLister, k int) *KeywordFallback {
	if k <= 0 {
		k = 4
	}
	return &KeywordFallback{lister: lister, k: k}
}

// Search 返回词面命中最多的内容单元，无命中返回空序列。
// 相似度取查询词项命中比例，结果按命中数降序、同分按 id 升序，保证确定性。
func (f *KeywordFallback) Search(ctx context.Context, query string) []Candidate {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		unit *entity.ContentUnit
		hits int
	}
	var matched []scored
	for _, u := range f.lister.All() {
		if u.Modality == entity.ModalityImage {
			continue
		}
		body := strings.ToLower(u.Payload)
		hits := 0
		for _, t := range terms {
			if strings.Contains(body, t) {
				hits++
			}
		}
		if hits > 0 {
			matched = append(matched, scored{unit: u, hits: hits})
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].hits != matched[j].hits {
			return matched[i].hits > matched[j].hits
		}
		return matched[i].unit.ID < matched[j].unit.ID
	})
	if len(matched) > f.k {
		matched = matched[:f.k]
	}

	out := make([]Candidate, 0, len(matched))
	for _, m := range matched {
		out = append(out, Candidate{
			ContentID:  m.unit.ID,
			Modality:   m.unit.Modality,
			Similarity: float64(m.hits) / float64(len(terms)),
			Unit:       m.unit,
		})
	}

	metrics.KeywordFallbackTotal.Inc()
	logger.Debug(ctx, "keyword fallback supplied candidates", "count", len(out))
	return out
}
