package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
)

// NewGateway 根据配置选择后端，流水线内部不再区分后端类型
func NewGateway(ctx context.Context, cfg *config.Config) (Gateway, error) {
	switch cfg.LLM.Provider {
	case "mock", "":
		return NewMockGateway(), nil
	case "openai":
		return NewEinoGateway(ctx, cfg.LLM, NewLimiter(cfg.Concurrency))
	case "claude":
		return NewClaudeGateway(cfg.LLM, NewLimiter(cfg.Concurrency)), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// Observer 接收每次调用的结果，用于指标统计
type Observer interface {
	ObserveLLMCall(task string, elapsed time.Duration, err error)
}

type observed struct {
	Gateway
	obs Observer
}

// WithObserver 包装 Gateway，记录每次调用的任务类型、耗时与错误
func WithObserver(g Gateway, obs Observer) Gateway {
	if obs == nil {
		return g
	}
	return &observed{Gateway: g, obs: obs}
}

func (o *observed) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	task := TaskOf(prompt)
	start := time.Now()
	out, err := o.Gateway.Complete(ctx, prompt, maxTokens)
	elapsed := time.Since(start)
	o.obs.ObserveLLMCall(string(task), elapsed, err)

	entry := logger.Log.WithField("task", task).WithField("elapsed", elapsed.Round(time.Millisecond))
	if err != nil {
		entry.Warnf("LLM 调用失败: %v", err)
	} else {
		entry.Debugf("LLM 调用完成，输出 %d 字节", len(out))
	}
	return out, err
}
