// Package milvus 提供摘要向量索引的 Milvus 实现
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

// Repository 摘要索引仓储
type Repository struct {
	client *Client
}

// NewRepository 创建摘要索引仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	QueryVector []float32
	TopK        int

	// Modality 为空时不过滤模态
	Modality string
}

// SearchResult 检索结果
type SearchResult struct {
	ID       string
	Score    float32
	Modality string
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// SearchSummaries 检索摘要
func (r *Repository) SearchSummaries(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchSummaries",
		trace.WithAttributes(
			attribute.Int("top_k", params.TopK),
			attribute.String("modality", params.Modality),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionSummaryUnits)

	filter := ""
	if params.Modality != "" {
		filter = fmt.Sprintf(`modality == "%s"`, params.Modality)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "modality"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(collName, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(collName, "ok").Inc()

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}
			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if modCol, ok := result.Fields.GetColumn("modality").(*entity.ColumnVarChar); ok {
				sr.Modality = modCol.Data()[i]
			}
			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertSummaries 插入摘要记录
func (r *Repository) InsertSummaries(ctx context.Context, units []*SummaryUnit) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertSummaries",
		trace.WithAttributes(attribute.Int("count", len(units))))
	defer span.End()

	if len(units) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionSummaryUnits)

	ids := make([]string, len(units))
	vectors := make([][]float32, len(units))
	modalities := make([]string, len(units))
	summaries := make([]string, len(units))
	sourceRefs := make([]string, len(units))

	for i, u := range units {
		ids[i] = u.ID
		vectors[i] = u.Vector
		modalities[i] = u.Modality
		summaries[i] = u.SummaryText
		sourceRefs[i] = u.SourceRef
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, vectors)
	modalityCol := entity.NewColumnVarChar("modality", modalities)
	summaryCol := entity.NewColumnVarChar("summary_text", summaries)
	sourceCol := entity.NewColumnVarChar("source_ref", sourceRefs)

	_, err := r.client.milvus.Insert(ctx, collName, "",
		idCol, vectorCol, modalityCol, summaryCol, sourceCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert summaries: %w", err)
	}

	return nil
}

// CountSummaries 返回集合行数，用于就绪检查
func (r *Repository) CountSummaries(ctx context.Context) (int64, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return 0, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CountSummaries")
	defer span.End()

	collName := r.client.CollectionName(CollectionSummaryUnits)

	stats, err := r.client.milvus.GetCollectionStatistics(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	rowCount, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count: %w", err)
	}
	return rowCount, nil
}

// EnsureSummaryUnitsCollection 确保摘要集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureSummaryUnitsCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionSummaryUnits)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, SummaryUnitsSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionSummaryUnits)
	}

	return r.client.LoadCollection(ctx, CollectionSummaryUnits)
}
