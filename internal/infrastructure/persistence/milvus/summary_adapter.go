// Package milvus 提供摘要向量索引的 Milvus 实现
package milvus

import (
	"context"
	"fmt"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	domain "github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// SummaryIndexAdapter 将 Repository 适配为 retrieval.SummaryIndex port
type SummaryIndexAdapter struct {
	repo *Repository
}

// NewSummaryIndexAdapter 创建适配器
func NewSummaryIndexAdapter(repo *Repository) *SummaryIndexAdapter {
	return &SummaryIndexAdapter{repo: repo}
}

var _ retrieval.SummaryIndex = (*SummaryIndexAdapter)(nil)

// EnsureCollection 实现 retrieval.SummaryIndex
func (a *SummaryIndexAdapter) EnsureCollection(ctx context.Context) error {
	if a == nil || a.repo == nil {
		return fmt.Errorf("summary index not configured")
	}
	return a.repo.EnsureSummaryUnitsCollection(ctx)
}

// Search 实现 retrieval.SummaryIndex
func (a *SummaryIndexAdapter) Search(ctx context.Context, vector []float32, k int, modality domain.Modality) ([]*retrieval.IndexHit, error) {
	if a == nil || a.repo == nil {
		return nil, fmt.Errorf("summary index not configured")
	}
	results, err := a.repo.SearchSummaries(ctx, &SearchParams{
		QueryVector: vector,
		TopK:        k,
		Modality:    string(modality),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]*retrieval.IndexHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, &retrieval.IndexHit{
			ContentID:  r.ID,
			Modality:   domain.Modality(r.Modality),
			Similarity: float64(r.Score),
		})
	}
	return hits, nil
}

// Insert 实现 retrieval.SummaryIndex
func (a *SummaryIndexAdapter) Insert(ctx context.Context, records []*retrieval.IndexRecord) error {
	if a == nil || a.repo == nil {
		return fmt.Errorf("summary index not configured")
	}
	units := make([]*SummaryUnit, 0, len(records))
	for _, rec := range records {
		units = append(units, &SummaryUnit{
			ID:          rec.ContentID,
			Vector:      rec.Vector,
			Modality:    string(rec.Modality),
			SummaryText: rec.SummaryText,
			SourceRef:   rec.SourceRef,
		})
	}
	return a.repo.InsertSummaries(ctx, units)
}

// Count 实现 retrieval.SummaryIndex
func (a *SummaryIndexAdapter) Count(ctx context.Context) (int64, error) {
	if a == nil || a.repo == nil {
		return 0, fmt.Errorf("summary index not configured")
	}
	return a.repo.CountSummaries(ctx)
}
