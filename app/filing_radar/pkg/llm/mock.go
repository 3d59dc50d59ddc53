package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// MockModel 模拟后端写入记录的模型标识
const MockModel = "mock-filing-model"

// Responder 针对某类任务的自定义应答
type Responder func(ctx context.Context, prompt string) (string, error)

// MockGateway 确定性的模拟后端：按任务类型返回固定内容，并统计调用次数
type MockGateway struct {
	mu        sync.Mutex
	calls     map[Task]int
	overrides map[Task]Responder
}

// NewMockGateway 创建模拟后端
func NewMockGateway() *MockGateway {
	return &MockGateway{
		calls:     make(map[Task]int),
		overrides: make(map[Task]Responder),
	}
}

// Override 替换某类任务的应答，用于注入格式错误、失败或阻塞
func (m *MockGateway) Override(task Task, fn Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[task] = fn
}

// Calls 某类任务的调用次数
func (m *MockGateway) Calls(task Task) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[task]
}

// TotalCalls 全部调用次数
func (m *MockGateway) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Model 实现 Gateway
func (m *MockGateway) Model() string { return MockModel }

// Complete 实现 Gateway
func (m *MockGateway) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	task := TaskOf(prompt)

	m.mu.Lock()
	m.calls[task]++
	override := m.overrides[task]
	m.mu.Unlock()

	if override != nil {
		return override(ctx, prompt)
	}

	subject := SubjectOf(prompt)
	switch task {
	case TaskExtract:
		return mustJSON(MockFacts(subject)), nil
	case TaskReduce, TaskRepair:
		return "```json\n" + mustJSON(MockReport(subject)) + "\n```", nil
	case TaskReaction:
		return mustJSON(MockReaction()), nil
	case TaskNarrative:
		return mustJSON(MockNarrative()), nil
	case TaskBrief:
		return fmt.Sprintf("%s 的一致预期显示市场对本季度利润率保持<b>谨慎乐观</b>。", subject), nil
	default:
		return "", fmt.Errorf("mock gateway: unknown task %q", task)
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func strp(s string) *string { return &s }

// MockFacts 固定的分块抽取结果
func MockFacts(subject string) *model.FactsBag {
	return &model.FactsBag{
		Revenue: []model.FactItem{
			{"label": "Total revenue", "value": "$1.20B", "prior": "$1.07B"},
		},
		Profitability: []model.FactItem{
			{"label": "Gross margin", "value": "43.8%"},
		},
		Guidance: []model.FactItem{
			{"text": "Full-year revenue expected between $4.8B and $5.0B"},
		},
		Risks: []model.FactItem{
			{"title": "Supply chain concentration", "subject": subject},
		},
		KeyMetrics: model.KeyMetrics{
			Revenue:     strp("$1.20B"),
			EPS:         strp("$1.45"),
			GrossMargin: strp("43.8%"),
		},
		Period: model.PeriodInfo{Currency: strp("USD")},
	}
}

// MockReport 满足全部结构约束的报告
func MockReport(subject string) *model.StructuredReport {
	titles := [model.SectionCount]string{
		"Overview", "Key Metrics", "Segments", "Profitability", "Cash Flow",
		"Balance Sheet", "Guidance", "Risk Factors", "Management Commentary", "Analyst Takeaways",
	}

	r := &model.StructuredReport{
		Schema: model.SchemaVersion,
		Meta: model.ReportMeta{
			Ticker:     model.Text(subject),
			Company:    model.Text(subject + " Corp."),
			FilingType: "10-Q",
			Currency:   "USD",
		},
		Cover: model.Cover{
			Title:    model.Text(subject + " quarterly results"),
			Subtitle: "Revenue and margins ahead of plan",
			KPIs: []model.KPI{
				{Label: "Revenue", Value: "$1.20B", Delta: "+12%"},
				{Label: "Diluted EPS", Value: "$1.45", Delta: "+9%"},
				{Label: "Gross margin", Value: "43.8%", Delta: "+1.1pt"},
				{Label: "Free cash flow", Value: "$210M", Delta: "+4%"},
			},
		},
	}
	for i, t := range model.SectionOrder {
		r.TOC = append(r.TOC, model.TOCEntry{ID: model.Text(model.SectionID(i)), Title: model.Text(titles[i])})
		r.Sections = append(r.Sections, model.Section{
			ID:       model.Text(model.SectionID(i)),
			Type:     t,
			Title:    model.Text(titles[i]),
			Insights: model.Insights{titles[i] + " remained <b>stable</b> versus the prior quarter."},
		})
	}

	s := r.Sections
	s[0].Body = model.Text(subject + " delivered double-digit revenue growth with expanding margins.")
	s[1].Rows = []model.MetricRow{
		{Label: "Revenue", Current: "$1.20B", Prior: "$1.07B", Change: "+12%"},
		{Label: "Diluted EPS", Current: "$1.45", Prior: "$1.33", Change: "+9%"},
		{Label: "Adjusted EBITDA", Current: "$310M", Prior: "$280M", Change: "+11%"},
		{Label: "Net income", Current: "$190M", Prior: "$171M", Change: "+11%"},
	}
	s[2].Bars = []model.Bar{
		{Label: "Products", Value: "$900M", Share: "75%"},
		{Label: "Services", Value: "$300M", Share: "25%"},
	}
	s[3].Cards = []model.Card{
		{Label: "Gross margin", Value: "43.8%", Note: "Mix shift to services"},
		{Label: "Operating margin", Value: "18.2%", Note: "Opex leverage"},
	}
	s[4].Timeline = []model.TimelineStep{
		{Label: "Operating cash flow", Value: "$260M"},
		{Label: "Capital expenditure", Value: "−$50M"},
		{Label: "Free cash flow", Value: "$210M"},
	}
	s[5].Cards = []model.Card{
		{Label: "Cash and equivalents", Value: "$2.1B"},
		{Label: "Total debt", Value: "$900M"},
	}
	s[6].Statements = []model.Statement{
		{Metric: "Revenue", Text: "Full-year revenue expected between $4.8B and $5.0B"},
		{Metric: "Revenue", Text: "Fourth-quarter revenue of $1.25B-$1.35B"},
	}
	s[7].Risks = []model.Risk{
		{Title: "Supply chain concentration", Severity: "high", Detail: "Single-source components."},
		{Title: "Foreign exchange", Severity: "medium", Detail: "Strong dollar headwind."},
	}
	s[8].Quotes = []model.Quote{
		{Speaker: "CEO", Text: "We executed well across every segment."},
	}
	s[9].Body = "Watch services attach rates and gross margin durability."
	return r
}

// MockReaction 固定的市场反应
func MockReaction() *model.MarketReaction {
	return &model.MarketReaction{
		Driver:         "eps",
		BullCase:       "Margin expansion is **structural**.",
		BearCase:       "Guidance implies slower second half.",
		BeatQuality:    "high",
		GuidanceSignal: model.GuidanceRaised,
		Summary:        "Clean beat on earnings with raised outlook.",
	}
}

// MockNarrative 固定的叙事对比
func MockNarrative() *model.NarrativeChange {
	return &model.NarrativeChange{
		ToneShift:           "more confident",
		NewRiskThemes:       []string{"tariffs"},
		RemovedRiskThemes:   []string{"foreign exchange"},
		NewGrowthFocus:      []string{"services"},
		ManagementToneDelta: "positive",
	}
}
