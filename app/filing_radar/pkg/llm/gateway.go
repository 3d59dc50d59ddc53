package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway 生成式文本后端的统一能力，不含任何流水线逻辑
type Gateway interface {
	// Complete 单次补全调用
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	// Model 写入记录的模型标识
	Model() string
}

// Task 调用类型，写在每个 prompt 的第一行
type Task string

const (
	TaskExtract   Task = "extract_facts"
	TaskReduce    Task = "reduce_report"
	TaskRepair    Task = "repair_report"
	TaskReaction  Task = "market_reaction"
	TaskNarrative Task = "narrative_change"
	TaskBrief     Task = "consensus_brief"
	TaskUnknown   Task = "unknown"
)

const (
	taskPrefix    = "TASK: "
	subjectPrefix = "SUBJECT: "
)

// Header 生成 prompt 头部：任务行与标的行
func Header(task Task, subject string) string {
	return fmt.Sprintf("%s%s\n%s%s\n", taskPrefix, task, subjectPrefix, subject)
}

// TaskOf 从 prompt 第一行读出任务类型
func TaskOf(prompt string) Task {
	first, _, _ := strings.Cut(prompt, "\n")
	if t, ok := strings.CutPrefix(strings.TrimSpace(first), taskPrefix); ok {
		return Task(strings.TrimSpace(t))
	}
	return TaskUnknown
}

// SubjectOf 从 prompt 中读出标的
func SubjectOf(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if s, ok := strings.CutPrefix(strings.TrimSpace(line), subjectPrefix); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// StripFences 去掉模型常加的 ```json 代码块包裹
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON 去掉代码块后解析 JSON；解析失败时再尝试截取最外层的对象
func DecodeJSON(raw string, v any) error {
	clean := StripFences(raw)
	err := json.Unmarshal([]byte(clean), v)
	if err == nil {
		return nil
	}
	start, end := strings.IndexByte(clean, '{'), strings.LastIndexByte(clean, '}')
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(clean[start:end+1]), v) == nil {
			return nil
		}
	}
	return fmt.Errorf("json unmarshal: %w", err)
}
