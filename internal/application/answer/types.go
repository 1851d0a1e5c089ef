// Package answer 实现答案生成与问答流水线编排
package answer

import "context"

// Mode 答案生成模式
type Mode string

const (
	// ModeAnswerOnly 仅返回答案文本
	ModeAnswerOnly Mode = "answer_only"

	// ModeAgenticWithSources 答案带内联引用标记与引用列表
	ModeAgenticWithSources Mode = "agentic_with_sources"
)

// Valid 检查模式是否合法
func (m Mode) Valid() bool {
	return m == ModeAnswerOnly || m == ModeAgenticWithSources
}

// Citation 答案引用的内容单元
type Citation struct {
	ContentID string `json:"content_id"`
	SourceRef string `json:"source_ref"`
	Snippet   string `json:"snippet,omitempty"`
}

// Result 流水线最终产物
type Result struct {
	Answer      string     `json:"answer"`
	Mode        Mode       `json:"mode"`
	Citations   []Citation `json:"citations"`
	SafetyFlags []string   `json:"safety_flags"`

	// Partial 是否存在因超时被丢弃的检索轮次
	Partial bool `json:"partial"`

	// Insufficient 是否为证据不足的确定性回复
	Insufficient bool `json:"-"`
}

// Prompt 一次生成调用的输入
type Prompt struct {
	System   string
	Question string

	// Context 文本与表格单元拼接出的证据上下文
	Context string

	// Images base64 编码的图像单元
	Images []string
}

// Generation LLM 生成 port，由 LLM 适配器实现
type Generation interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Cache 答案缓存 port，由缓存适配器实现
type Cache interface {
	GetAnswer(ctx context.Context, query string, mode Mode) (*Result, error)
	SetAnswer(ctx context.Context, query string, mode Mode, res *Result) error
}
