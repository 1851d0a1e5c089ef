// Package milvus 提供摘要向量索引的 Milvus 实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionSummaryUnits 内容单元摘要集合
	CollectionSummaryUnits = "summary_units"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

// SummaryUnitsSchema 摘要集合 Schema。
// 主键 id 即内容单元 id，检索命中后在文档存储解析为完整单元。
func SummaryUnitsSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionSummaryUnits,
		Description:    "Content unit summaries for multi-vector retrieval",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "modality",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "summary_text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "source_ref",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
		},
	}
}

// SummaryUnit 摘要记录数据结构
type SummaryUnit struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	Modality    string    `json:"modality"`
	SummaryText string    `json:"summary_text"`
	SourceRef   string    `json:"source_ref"`
}
