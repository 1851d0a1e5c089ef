package answer

import (
	"strconv"
	"strings"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// systemPersona 生成角色设定
const systemPersona = `You are a renal nutrition assistant for chronic kidney disease and dialysis patients.
Answer strictly from the provided evidence context.
Write 4-6 short bullet points, each at most 18 words.
Be concrete: name foods, amounts, and limits when the evidence states them.
Do not tell the user to consult a provider.
If the evidence does not cover the question, say so plainly.`

// sourceInstruction 引用模式的附加指令
const sourceInstruction = `Cite evidence with inline markers like [1] matching the numbered sources. Every bullet needs at least one marker.`

// InsufficientEvidence 证据不足时的确定性回复
const InsufficientEvidence = "- The available evidence does not cover this question.\n- Try rephrasing, or ask about renal diet, nutrients, or the gut microbiome.\n\n" + fixedNote

// buildPrompt 从重排序后的候选构造生成输入。
// 文本与表格单元按序编号拼入上下文，图像单元单独附带。
func buildPrompt(query string, ranked []retrieval.RankedCandidate, withSources bool) Prompt {
	var sb strings.Builder
	var images []string
	n := 0
	for _, rc := range ranked {
		if rc.Modality == entity.ModalityImage {
			images = append(images, rc.Unit.Payload)
			continue
		}
		n++
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(n))
		sb.WriteString("] (")
		sb.WriteString(string(rc.Modality))
		if rc.Unit.SourceRef != "" {
			sb.WriteString(", ")
			sb.WriteString(rc.Unit.SourceRef)
		}
		sb.WriteString(")\n")
		sb.WriteString(strings.TrimSpace(rc.Unit.Payload))
		sb.WriteString("\n\n")
	}

	system := systemPersona
	if withSources {
		system += "\n" + sourceInstruction
	}
	return Prompt{
		System:   system,
		Question: query,
		Context:  strings.TrimSpace(sb.String()),
		Images:   images,
	}
}
