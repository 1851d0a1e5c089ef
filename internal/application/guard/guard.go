// Package guard 实现输入安全守卫与生成后安全标注
package guard

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

// Verdict 守卫判定结果
type Verdict string

const (
	VerdictAccepted          Verdict = "accepted"
	VerdictRejectedGibberish Verdict = "rejected_gibberish"
	VerdictRejectedInjection Verdict = "rejected_injection"
)

// 拒绝时返回给调用方的固定话术
const (
	MsgGibberish = "Please ask a clear question about renal nutrition, diet, or the gut microbiome."
	MsgInjection = "This request cannot be processed. Please ask a question about renal nutrition."
)

// injectionPatterns 提示注入特征
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all|any|previous|prior)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)disregard\s+(all|any|previous|prior|the)\s`),
	regexp.MustCompile(`(?i)\bact\s+as\b`),
	regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\b`),
	regexp.MustCompile(`(?i)system\s+prompt`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(instructions?|prompt)`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
}

// bannedTerms 与营养问答无关的违禁内容
var bannedTerms = []string{
	"kill", "suicide", "bomb", "weapon", "hate",
}

// Gate 检索前输入守卫
type Gate struct {
	minLength int
	minAlpha  int
}

// NewGate 创建输入守卫
func NewGate(minLength, minAlpha int) *Gate {
	if minLength <= 0 {
		minLength = 3
	}
	if minAlpha <= 0 {
		minAlpha = 3
	}
	return &Gate{minLength: minLength, minAlpha: minAlpha}
}

// Check 判定查询。接受时返回 (VerdictAccepted, "")，
// 拒绝时返回判定类别与固定拒绝话术。
func (g *Gate) Check(query string) (Verdict, string) {
	q := strings.TrimSpace(query)

	if v, msg, rejected := g.checkForm(q); rejected {
		metrics.GuardRejectionsTotal.WithLabelValues(reasonLabel(v)).Inc()
		return v, msg
	}
	if v, msg, rejected := g.checkIntent(q); rejected {
		metrics.GuardRejectionsTotal.WithLabelValues(reasonLabel(v)).Inc()
		return v, msg
	}
	return VerdictAccepted, ""
}

// checkForm 形式检查：长度与有效字符
func (g *Gate) checkForm(q string) (Verdict, string, bool) {
	if len(q) < g.minLength {
		return VerdictRejectedGibberish, MsgGibberish, true
	}
	alpha := 0
	for _, r := range q {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha < g.minAlpha {
		return VerdictRejectedGibberish, MsgGibberish, true
	}
	return VerdictAccepted, "", false
}

// checkIntent 意图检查：提示注入与违禁内容
func (g *Gate) checkIntent(q string) (Verdict, string, bool) {
	for _, p := range injectionPatterns {
		if p.MatchString(q) {
			return VerdictRejectedInjection, MsgInjection, true
		}
	}
	lower := strings.ToLower(q)
	for _, t := range bannedTerms {
		if containsWord(lower, t) {
			return VerdictRejectedInjection, MsgInjection, true
		}
	}
	return VerdictAccepted, "", false
}

// containsWord 按词边界匹配，避免误伤 killer cells 之类的子串
func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !unicode.IsLetter(rune(s[start-1]))
		rightOK := end == len(s) || !unicode.IsLetter(rune(s[end]))
		if leftOK && rightOK {
			return true
		}
		idx = end
	}
}

// reasonLabel 指标标签
func reasonLabel(v Verdict) string {
	if v == VerdictRejectedInjection {
		return "injection"
	}
	return "gibberish"
}
