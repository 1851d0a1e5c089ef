// Package entity 定义领域实体
package entity

// Modality 内容单元的模态类型
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityTable Modality = "table"
	ModalityImage Modality = "image"
)

// Valid 检查模态是否合法
func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityTable, ModalityImage:
		return true
	}
	return false
}

// AllModalities 返回全部模态
func AllModalities() []Modality {
	return []Modality{ModalityText, ModalityTable, ModalityImage}
}

// ContentUnit 原始内容单元。加载后不可变，仅由文档存储持有。
// Payload 对 text/table 是原文，对 image 是 base64 编码数据。
type ContentUnit struct {
	ID        string   `json:"id"`
	Modality  Modality `json:"modality"`
	Payload   string   `json:"payload"`
	SourceRef string   `json:"source_ref"`
}

// SummaryRecord 内容单元的摘要记录，与 ContentUnit 一一对应。
// Embedding 在 ingest 时派生一次，之后不再变更。
type SummaryRecord struct {
	ID          string    `json:"id"`
	SummaryText string    `json:"summary_text"`
	Embedding   []float32 `json:"embedding,omitempty"`
}
