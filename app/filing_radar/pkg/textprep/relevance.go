package textprep

import (
	"sort"
	"strings"
)

// Topic 财务相关主题及其关键词
type Topic struct {
	Name     string
	Keywords []string
}

// Topics 固定的主题关键词分组
var Topics = []Topic{
	{Name: "mdna", Keywords: []string{"management's discussion and analysis", "management’s discussion and analysis", "results of operations"}},
	{Name: "revenue", Keywords: []string{"total revenue", "net revenue", "net sales", "revenues"}},
	{Name: "profitability", Keywords: []string{"gross margin", "operating income", "net income", "gross profit"}},
	{Name: "cash_flow", Keywords: []string{"cash flows", "cash provided by operating activities", "free cash flow"}},
	{Name: "guidance", Keywords: []string{"outlook", "guidance", "we expect", "forward-looking"}},
	{Name: "risk", Keywords: []string{"risk factors"}},
	{Name: "balance_sheet", Keywords: []string{"balance sheet", "total assets", "liquidity and capital resources"}},
}

type topicHit struct {
	topic string
	line  int
}

// SelectRelevant 逐行查找每个主题第一次出现的位置，取其后固定行数的窗口，按文档顺序拼接；
// 没有任何主题命中时退化为头部截断
func SelectRelevant(text string, windowLines, maxChars int) (string, []string) {
	if text == "" || maxChars <= 0 {
		return "", nil
	}
	lines := strings.Split(text, "\n")

	var hits []topicHit
	for _, topic := range Topics {
		if idx := firstMatch(lines, topic.Keywords); idx >= 0 {
			hits = append(hits, topicHit{topic: topic.Name, line: idx})
		}
	}
	if len(hits) == 0 {
		return truncateRunes(text, maxChars), nil
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].line < hits[j].line })

	perTopic := maxChars / len(hits)
	var (
		parts  []string
		topics []string
		total  int
		next   int // 已取过的行不再重复
	)
	for _, h := range hits {
		start := h.line
		if start < next {
			start = next
		}
		end := h.line + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			continue
		}
		next = end

		window := truncateRunes(strings.Join(lines[start:end], "\n"), perTopic)
		if remaining := maxChars - total; runeLen(window) > remaining {
			window = truncateRunes(window, remaining)
		}
		if window == "" {
			break
		}
		parts = append(parts, window)
		topics = append(topics, h.topic)
		total += runeLen(window)
		if total >= maxChars {
			break
		}
	}
	return truncateRunes(strings.Join(parts, "\n\n"), maxChars), topics
}

func firstMatch(lines []string, keywords []string) int {
	for i, l := range lines {
		lower := strings.ToLower(l)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return i
			}
		}
	}
	return -1
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
