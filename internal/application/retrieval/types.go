package retrieval

import "github.com/Rogan-afk/NutriNephra/internal/domain/entity"

// Candidate 检索候选：摘要命中解析出的完整内容单元及其相似度
type Candidate struct {
	ContentID  string
	Modality   entity.Modality
	Similarity float64
	Unit       *entity.ContentUnit
}

// RankedCandidate 重排序后的候选，附带相关性分数
type RankedCandidate struct {
	Candidate
	Relevance float64
}

// Result 单轮检索结果
type Result struct {
	Candidates []Candidate

	// Hits 解析前的摘要命中总数
	Hits int

	// Dropped 因悬空引用被丢弃的命中数
	Dropped int
}

// Complexity 查询复杂度
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// PlanResult 规划器执行结果：合并去重后的候选与执行元信息
type PlanResult struct {
	Candidates []Candidate
	Complexity Complexity

	// RoundsExecuted 实际合并的轮数
	RoundsExecuted int

	// Dropped 全部轮次累计的悬空引用丢弃数
	Dropped int

	// Hits 合并前的摘要命中总数（含重复），用于一致性判定
	Hits int

	// Partial 是否有轮次因超时被丢弃
	Partial bool
}
