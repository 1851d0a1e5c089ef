package guard

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

// CounselRules 生成后安全标注规则
type CounselRules struct {
	SodiumMgMax       int
	PotassiumMgLimit  int
	PhosphorusMgLimit int

	// HazardFoods 食物关键词 -> 安全提示
	HazardFoods map[string]string
}

// Counsel 生成后安全标注器。只追加标注，从不拦截或改写答案。
type Counsel struct {
	rules CounselRules
}

// NewCounsel 创建安全标注器
func NewCounsel(rules CounselRules) *Counsel {
	return &Counsel{rules: rules}
}

// mgClaimRe 匹配 "2300 mg sodium" / "sodium ... 2300mg" 这类数值声明
var mgClaimRe = regexp.MustCompile(`(?i)(\d{2,6})\s*mg\b`)

// nutrients 数值上限检查涉及的营养素
var nutrients = []string{"sodium", "potassium", "phosphorus"}

// Flags 扫描查询与答案文本，返回应附加到答案上的安全标注。
// 返回顺序确定：先危害食物（按关键词字典序），再营养素阈值。
func (c *Counsel) Flags(query, answer string) []string {
	text := strings.ToLower(query + "\n" + answer)
	var flags []string

	keys := make([]string, 0, len(c.rules.HazardFoods))
	for k := range c.rules.HazardFoods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(text, strings.ToLower(k)) {
			flags = append(flags, "hazard:"+k+": "+c.rules.HazardFoods[k])
		}
	}

	for _, n := range nutrients {
		limit := c.limitFor(n)
		if limit <= 0 || !strings.Contains(text, n) {
			continue
		}
		if maxMgClaim(text, n) > limit {
			flags = append(flags, "threshold:"+n+": stated amount exceeds the usual renal limit of "+strconv.Itoa(limit)+" mg/day")
		}
	}

	for _, f := range flags {
		metrics.SafetyFlagsTotal.WithLabelValues(flagLabel(f)).Inc()
	}
	return flags
}

// limitFor 返回营养素的标注阈值（mg/日）
func (c *Counsel) limitFor(nutrient string) int {
	switch nutrient {
	case "sodium":
		return c.rules.SodiumMgMax
	case "potassium":
		return c.rules.PotassiumMgLimit
	case "phosphorus":
		return c.rules.PhosphorusMgLimit
	}
	return 0
}

// maxMgClaim 返回营养素附近出现的最大 mg 数值，未出现返回 0。
// 邻近窗口内同时出现营养素名与数值才算有效声明。
func maxMgClaim(text, nutrient string) int {
	const window = 80
	max := 0
	for _, m := range mgClaimRe.FindAllStringSubmatchIndex(text, -1) {
		v, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		lo := m[0] - window
		if lo < 0 {
			lo = 0
		}
		hi := m[1] + window
		if hi > len(text) {
			hi = len(text)
		}
		if strings.Contains(text[lo:hi], nutrient) && v > max {
			max = v
		}
	}
	return max
}

// flagLabel 指标标签：截断到类别:关键词
func flagLabel(flag string) string {
	parts := strings.SplitN(flag, ":", 3)
	if len(parts) >= 2 {
		return parts[0] + ":" + strings.TrimSpace(parts[1])
	}
	return flag
}
