package dto

// AnswerRequest 问答请求
type AnswerRequest struct {
	Question string `json:"question" binding:"required"`

	// Mode 生成模式：answer_only / agentic_with_sources，默认 answer_only
	Mode string `json:"mode"`

	// TopK 可选的引用上限，仅允许收紧，不允许放宽
	TopK int `json:"top_k"`
}

// CitationDTO 引用条目
type CitationDTO struct {
	ContentID string `json:"content_id"`
	SourceRef string `json:"source_ref"`
	Snippet   string `json:"snippet,omitempty"`
}

// AnswerResponse 问答响应
type AnswerResponse struct {
	Answer      string        `json:"answer"`
	Mode        string        `json:"mode"`
	Citations   []CitationDTO `json:"citations"`
	SafetyFlags []string      `json:"safety_flags"`
	Partial     bool          `json:"partial"`
}

// MetaResponse 服务元信息
type MetaResponse struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Version       string   `json:"version"`
	Modes         []string `json:"modes"`
	SampleQueries []string `json:"sample_queries"`
}

// ReloadResponse 快照重载结果
type ReloadResponse struct {
	Units    int    `json:"units"`
	LoadedAt string `json:"loaded_at"`
}
