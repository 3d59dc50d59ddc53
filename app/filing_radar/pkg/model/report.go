package model

import "fmt"

// SchemaVersion 当前结构化报告的 schema 标识
const SchemaVersion = "filing-report/v1"

const (
	// KPICount 封面 KPI 数量
	KPICount = 4
	// SectionCount 章节数量，目录条目数与之相同
	SectionCount = 10
)

// SectionType 章节类型
type SectionType string

const (
	SectionOverview           SectionType = "overview"
	SectionMetricsTable       SectionType = "metrics_table"
	SectionSegmentBars        SectionType = "segment_bars"
	SectionProfitabilityCards SectionType = "profitability_cards"
	SectionCashFlowTimeline   SectionType = "cash_flow_timeline"
	SectionBalanceSheetCards  SectionType = "balance_sheet_cards"
	SectionGuidance           SectionType = "guidance"
	SectionRiskFactors        SectionType = "risk_factors"
	SectionQuotes             SectionType = "quotes"
	SectionAnalystTakeaways   SectionType = "analyst_takeaways"
)

// SectionOrder 固定的章节顺序，下标 i 对应 id s{i+1}
var SectionOrder = [SectionCount]SectionType{
	SectionOverview,
	SectionMetricsTable,
	SectionSegmentBars,
	SectionProfitabilityCards,
	SectionCashFlowTimeline,
	SectionBalanceSheetCards,
	SectionGuidance,
	SectionRiskFactors,
	SectionQuotes,
	SectionAnalystTakeaways,
}

// SectionID 第 i 个章节（从 0 开始）的 id
func SectionID(i int) string {
	return fmt.Sprintf("s%d", i+1)
}

// StructuredReport 归约步骤产出的固定 schema 报告
type StructuredReport struct {
	Schema   string     `json:"schema"`
	Meta     ReportMeta `json:"meta"`
	Cover    Cover      `json:"cover"`
	TOC      []TOCEntry `json:"toc"`
	Sections []Section  `json:"sections"`
}

// ReportMeta 报告元信息
type ReportMeta struct {
	Ticker     Text `json:"ticker"`
	Company    Text `json:"company"`
	FilingType Text `json:"filing_type"`
	PeriodEnd  Text `json:"period_end"`
	FiledDate  Text `json:"filed_date"`
	Currency   Text `json:"currency"`
}

// Cover 封面
type Cover struct {
	Title    Text  `json:"title"`
	Subtitle Text  `json:"subtitle"`
	KPIs     []KPI `json:"kpis"`
}

// KPI 封面关键指标
type KPI struct {
	Label Text `json:"label"`
	Value Text `json:"value"`
	Delta Text `json:"delta"`
}

// TOCEntry 目录条目
type TOCEntry struct {
	ID    Text `json:"id"`
	Title Text `json:"title"`
}

// Section 报告章节，按 Type 使用对应的载荷字段
type Section struct {
	ID       Text        `json:"id"`
	Type     SectionType `json:"type"`
	Title    Text        `json:"title"`
	Body     Text        `json:"body,omitempty"`
	Insights Insights    `json:"insights"`

	Rows       []MetricRow    `json:"rows,omitempty"`       // metrics_table
	Bars       []Bar          `json:"bars,omitempty"`       // segment_bars
	Cards      []Card         `json:"cards,omitempty"`      // profitability_cards / balance_sheet_cards
	Timeline   []TimelineStep `json:"timeline,omitempty"`   // cash_flow_timeline
	Statements []Statement    `json:"statements,omitempty"` // guidance
	Risks      []Risk         `json:"risks,omitempty"`      // risk_factors
	Quotes     []Quote        `json:"quotes,omitempty"`     // quotes
}

// MetricRow 指标表的一行
type MetricRow struct {
	Label   Text `json:"label"`
	Current Text `json:"current"`
	Prior   Text `json:"prior"`
	Change  Text `json:"change"`
}

// Bar 分部条形图的一项
type Bar struct {
	Label Text `json:"label"`
	Value Text `json:"value"`
	Share Text `json:"share"`
}

// Card 指标卡片
type Card struct {
	Label Text `json:"label"`
	Value Text `json:"value"`
	Note  Text `json:"note"`
}

// TimelineStep 现金流时间线的一步
type TimelineStep struct {
	Label Text `json:"label"`
	Value Text `json:"value"`
}

// Statement 指引陈述
type Statement struct {
	Metric Text `json:"metric"`
	Text   Text `json:"text"`
}

// Risk 风险因素
type Risk struct {
	Title    Text `json:"title"`
	Severity Text `json:"severity"`
	Detail   Text `json:"detail"`
}

// Quote 管理层引述
type Quote struct {
	Speaker Text `json:"speaker"`
	Text    Text `json:"text"`
}

// SectionByType 返回第一个指定类型的章节
func (r *StructuredReport) SectionByType(t SectionType) *Section {
	if r == nil {
		return nil
	}
	for i := range r.Sections {
		if r.Sections[i].Type == t {
			return &r.Sections[i]
		}
	}
	return nil
}
