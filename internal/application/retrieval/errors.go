package retrieval

import "errors"

var (
	// ErrIndexUnavailable 摘要索引不可达（重试耗尽后）
	ErrIndexUnavailable = errors.New("summary index unavailable")

	// ErrUnitNotFound 内容单元不存在
	ErrUnitNotFound = errors.New("content unit not found")

	// ErrEmbeddingFailed 查询向量化失败
	ErrEmbeddingFailed = errors.New("query embedding failed")
)
