package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
)

// Indexer 摘要索引构建器：摘要文本向量化后批量写入摘要索引
type Indexer struct {
	embedder  embedding.Embedder
	index     SummaryIndex
	batchSize int
}

// NewIndexer 创建索引构建器
func NewIndexer(embedder embedding.Embedder, index SummaryIndex, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Indexer{embedder: embedder, index: index, batchSize: batchSize}
}

// Run 为全部内容单元构建摘要索引。
// units 与 summaries 按 id 对齐，缺摘要的单元跳过。
func (ix *Indexer) Run(ctx context.Context, units []*entity.ContentUnit, summaries []*entity.SummaryRecord) (int, error) {
	if err := ix.index.EnsureCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	byID := make(map[string]*entity.SummaryRecord, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}

	var batch []*IndexRecord
	total := 0
	for _, u := range units {
		s, ok := byID[u.ID]
		if !ok || s.SummaryText == "" {
			logger.Warn(ctx, "content unit without summary skipped", "content_id", u.ID)
			continue
		}
		batch = append(batch, &IndexRecord{
			ContentID:   u.ID,
			Modality:    u.Modality,
			SummaryText: s.SummaryText,
			SourceRef:   u.SourceRef,
		})
		if len(batch) >= ix.batchSize {
			n, err := ix.flush(ctx, batch)
			if err != nil {
				return total, err
			}
			total += n
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		n, err := ix.flush(ctx, batch)
		if err != nil {
			return total, err
		}
		total += n
	}

	logger.Info(ctx, "summary index built", "records", total)
	return total, nil
}

// flush 向量化一批摘要并写入索引
func (ix *Indexer) flush(ctx context.Context, batch []*IndexRecord) (int, error) {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.SummaryText
	}
	vecs, err := ix.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed summaries: %w", err)
	}
	if len(vecs) != len(batch) {
		return 0, fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), len(batch))
	}
	for i, v := range vecs {
		vec := make([]float32, len(v))
		for j, f := range v {
			vec[j] = float32(f)
		}
		batch[i].Vector = vec
	}
	if err := ix.index.Insert(ctx, batch); err != nil {
		return 0, fmt.Errorf("insert summary records: %w", err)
	}
	return len(batch), nil
}
