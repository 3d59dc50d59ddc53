package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
)

const systemPrompt = "你是一个严谨的财报分析助手。需要 JSON 时只输出 JSON，不要包含 markdown 标记。"

// NewLimiter 按 RPM 限速，QPS 作为突发上限；两者为 0 时不限速
func NewLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	limit := rate.Inf
	if c.RPM > 0 {
		limit = rate.Limit(float64(c.RPM) / 60.0)
	}
	burst := c.QPS
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// EinoGateway 基于 eino 的 OpenAI 兼容后端
type EinoGateway struct {
	chatModel model.ChatModel
	limiter   *rate.Limiter
	model     string
}

// NewEinoGateway 创建 OpenAI 兼容后端
func NewEinoGateway(ctx context.Context, cfg config.LLMConfig, limiter *rate.Limiter) (*EinoGateway, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return &EinoGateway{chatModel: chatModel, limiter: limiter, model: cfg.Model}, nil
}

// Complete 实现 Gateway
func (g *EinoGateway) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}
	var opts []model.Option
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	resp, err := g.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Model 实现 Gateway
func (g *EinoGateway) Model() string { return g.model }
