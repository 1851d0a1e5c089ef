package answer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 输出整形常量
const (
	maxBullets      = 6
	maxWordsPerLine = 18
	snippetMaxChars = 160
	fixedNote       = "Note: Nutrition needs vary by CKD stage, labs, and dialysis status."
)

// deferralPhrases 从答案中剔除的推诿话术
var deferralPhrases = []string{
	"consult your provider",
	"consult your doctor",
	"consult a healthcare professional",
	"talk to your doctor",
	"speak with your doctor",
	"seek medical advice",
}

var (
	mdArtifactRe  = regexp.MustCompile("[*_`#>]+")
	multiSpaceRe  = regexp.MustCompile(`[ \t]+`)
	sentenceEndRe = regexp.MustCompile(`(?m)([.!?])\s+`)
)

// sanitize 去除 markdown 残留并压缩空白
func sanitize(s string) string {
	s = mdArtifactRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// bulletize 将生成文本整形为短句列表。
// 已是列表的文本按行拆分，否则按句子边界切分。
func bulletize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parts []string
	if strings.Contains(s, "\n- ") || strings.HasPrefix(s, "- ") || strings.Contains(s, "\n• ") {
		for _, line := range strings.Split(s, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(line, "-•*0123456789. "))
			if line != "" {
				parts = append(parts, line)
			}
		}
	} else {
		marked := sentenceEndRe.ReplaceAllString(s, "$1\n")
		for _, line := range strings.Split(marked, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				parts = append(parts, line)
			}
		}
	}
	return parts
}

// truncateWords 将单条要点截断到词数上限，保留结尾的引用标记
func truncateWords(line string, maxWords int) string {
	words := strings.Fields(line)
	if len(words) <= maxWords {
		return line
	}
	var tail string
	if m := citeMarkerRe.FindString(words[len(words)-1]); m != "" {
		tail = " " + m
	}
	return strings.Join(words[:maxWords], " ") + tail
}

var citeMarkerRe = regexp.MustCompile(`\[\d+\]`)

// tighten 将原始生成文本整形为最终答案：
// 去除推诿话术，限制要点数与每条词数，末尾保证固定提示语。
func tighten(raw string, maxChars int) string {
	lower := strings.ToLower(raw)
	for _, p := range deferralPhrases {
		for {
			i := strings.Index(lower, p)
			if i < 0 {
				break
			}
			raw = raw[:i] + raw[i+len(p):]
			lower = lower[:i] + lower[i+len(p):]
		}
	}

	// 生成文本中自带的 Note 行剔除，末尾统一追加固定提示语
	bullets := bulletize(sanitize(raw))
	kept := make([]string, 0, maxBullets)
	for _, b := range bullets {
		if strings.HasPrefix(b, "Note:") {
			continue
		}
		kept = append(kept, truncateWords(b, maxWordsPerLine))
		if len(kept) >= maxBullets {
			break
		}
	}

	var sb strings.Builder
	for _, b := range kept {
		sb.WriteString("- ")
		sb.WriteString(b)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fixedNote)

	out := sb.String()
	if maxChars > 0 && len(out) > maxChars {
		// 在 rune 边界截断，避免切出非法 UTF-8
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

// shortSnippet 从内容单元负载提取简短片段，在词边界截断
func shortSnippet(payload string) string {
	s := sanitize(payload)
	if len(s) <= snippetMaxChars {
		return s
	}
	cut := s[:snippetMaxChars]
	if i := strings.LastIndex(cut, " "); i > snippetMaxChars/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
