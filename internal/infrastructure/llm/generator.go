package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Rogan-afk/NutriNephra/internal/application/answer"
	"github.com/Rogan-afk/NutriNephra/internal/config"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
	"github.com/Rogan-afk/NutriNephra/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// Generator 答案生成适配器，实现 answer.Generation。
// 按 default_provider + fallback_chain 的顺序逐个尝试提供商。
type Generator struct {
	factory *EinoFactory
	chain   []string
}

// NewGenerator 创建生成适配器
func NewGenerator(factory *EinoFactory, cfg *config.LLMConfig) *Generator {
	chain := make([]string, 0, 1+len(cfg.FallbackChain))
	if cfg.DefaultProvider != "" {
		chain = append(chain, cfg.DefaultProvider)
	}
	for _, p := range cfg.FallbackChain {
		if p != "" && p != cfg.DefaultProvider {
			chain = append(chain, p)
		}
	}
	return &Generator{factory: factory, chain: chain}
}

var _ answer.Generation = (*Generator)(nil)

// Generate 实现 answer.Generation
func (g *Generator) Generate(ctx context.Context, prompt answer.Prompt) (string, error) {
	if g == nil || g.factory == nil {
		return "", fmt.Errorf("llm generator not configured")
	}
	ctx, span := tracer.Start(ctx, "llm.Generate",
		trace.WithAttributes(attribute.Int("images", len(prompt.Images))))
	defer span.End()

	msgs := buildMessages(prompt)

	var lastErr error
	for _, provider := range g.chain {
		chatModel, err := g.factory.Get(ctx, provider)
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		resp, err := chatModel.Generate(ctx, msgs)
		metrics.LLMCallDuration.WithLabelValues(provider, "").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(provider, "", "error").Inc()
			span.RecordError(err)
			logger.Warn(ctx, "llm provider failed, trying next", "provider", provider, "error", err)
			lastErr = err
			continue
		}
		metrics.LLMCallTotal.WithLabelValues(provider, "", "ok").Inc()
		return resp.Content, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no llm providers configured")
	}
	return "", lastErr
}

// buildMessages 构造对话消息。图像以 data URL 形式随用户消息附带。
func buildMessages(prompt answer.Prompt) []*schema.Message {
	var sb strings.Builder
	sb.WriteString("Evidence context:\n")
	if prompt.Context != "" {
		sb.WriteString(prompt.Context)
	} else {
		sb.WriteString("(none)")
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(prompt.Question)
	userText := sb.String()

	if len(prompt.Images) == 0 {
		return []*schema.Message{
			schema.SystemMessage(prompt.System),
			schema.UserMessage(userText),
		}
	}

	parts := make([]schema.ChatMessagePart, 0, 1+len(prompt.Images))
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: userText,
	})
	for _, img := range prompt.Images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + img,
			},
		})
	}
	return []*schema.Message{
		schema.SystemMessage(prompt.System),
		{Role: schema.User, MultiContent: parts},
	}
}
