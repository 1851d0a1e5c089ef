package answer

import "errors"

var (
	// ErrGenerationUnavailable 生成重试耗尽
	ErrGenerationUnavailable = errors.New("answer generation unavailable")

	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("answer cache miss")
)
