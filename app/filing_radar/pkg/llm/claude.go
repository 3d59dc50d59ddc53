package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
)

// ClaudeGateway Anthropic Messages 后端
type ClaudeGateway struct {
	client  anthropic.Client
	limiter *rate.Limiter
	model   string
}

// NewClaudeGateway 创建 Anthropic 后端
func NewClaudeGateway(cfg config.LLMConfig, limiter *rate.Limiter) *ClaudeGateway {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeGateway{
		client:  anthropic.NewClient(opts...),
		limiter: limiter,
		model:   cfg.Model,
	}
}

// Complete 实现 Gateway
func (g *ClaudeGateway) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// Model 实现 Gateway
func (g *ClaudeGateway) Model() string { return g.model }
