// Package retrieval 实现多向量检索：摘要向量召回 + 原始内容单元解析
package retrieval

import (
	"context"

	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// IndexHit 摘要索引的单条命中结果
type IndexHit struct {
	ContentID  string
	Modality   entity.Modality
	Similarity float64
}

// IndexRecord 写入摘要索引的记录
type IndexRecord struct {
	ContentID   string
	Modality    entity.Modality
	SummaryText string
	SourceRef   string
	Vector      []float32
}

// SummaryIndex 摘要向量索引 port，由向量数据库适配器实现
type SummaryIndex interface {
	// EnsureCollection 确保集合与索引存在
	EnsureCollection(ctx context.Context) error

	// Search 按向量检索 top-k 摘要。modality 为空时不过滤模态。
	Search(ctx context.Context, vector []float32, k int, modality entity.Modality) ([]*IndexHit, error)

	// Insert 批量写入摘要记录
	Insert(ctx context.Context, records []*IndexRecord) error

	// Count 返回索引中的记录数，用于就绪检查
	Count(ctx context.Context) (int64, error)
}

// DocumentStore 原始内容单元存储 port。
// 摘要命中的 content_id 在此解析为完整内容单元。
type DocumentStore interface {
	// GetByID 按 id 获取内容单元，不存在时返回 ErrUnitNotFound
	GetByID(ctx context.Context, id string) (*entity.ContentUnit, error)

	// GetMany 批量获取，缺失的 id 不出现在结果中
	GetMany(ctx context.Context, ids []string) (map[string]*entity.ContentUnit, error)

	// Len 返回已加载的内容单元数量
	Len() int

	// Ready 快照是否已加载
	Ready() bool
}
