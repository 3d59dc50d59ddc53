package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/sanitize"
)

// PriorLookup 查询同一标的最近一份更早的报告
type PriorLookup interface {
	PriorForSubject(ctx context.Context, subject, excludeFilingKey string) (*model.ReportOutput, error)
}

// Options 富化阶段参数
type Options struct {
	GuidanceExcerpt int
	SummaryMaxChars int
	ReactionTokens  int
	NarrativeTokens int
	BriefTokens     int
}

// Enricher 需要调用模型的富化阶段；每个阶段失败时返回 nil，不中断流水线
type Enricher struct {
	gw    llm.Gateway
	prior PriorLookup
	opts  Options
}

// New 创建 Enricher
func New(gw llm.Gateway, prior PriorLookup, opts Options) *Enricher {
	return &Enricher{gw: gw, prior: prior, opts: opts}
}

// reactionPayload 宽松解析，缺失或类型不符的字段视为空
type reactionPayload struct {
	Driver         model.Text `json:"driver"`
	BullCase       model.Text `json:"bull_case"`
	BearCase       model.Text `json:"bear_case"`
	BeatQuality    model.Text `json:"beat_quality"`
	GuidanceSignal model.Text `json:"guidance_signal"`
	Summary        model.Text `json:"summary"`
}

const reactionTpl = `Assess the likely market reaction to this filing.
ACTUALS: %s
CONSENSUS: %s
SURPRISE (%%): %s
GUIDANCE EXCERPT:
%s

Return strictly one JSON object:
{"driver": "", "bull_case": "", "bear_case": "", "beat_quality": "high|medium|low|miss",
 "guidance_signal": "raised|maintained|lowered|initiated|none", "summary": ""}`

// Reaction 一次模型调用生成市场反应叙述
func (e *Enricher) Reaction(ctx context.Context, ref model.FilingRef, report *model.StructuredReport,
	actuals *model.ActualsSnapshot, consensus *model.ConsensusSnapshot, surprise *model.SurpriseSnapshot) *model.MarketReaction {
	log := logger.Stage("reaction", ref.FilingKey)

	prompt := llm.Header(llm.TaskReaction, ref.Subject) + fmt.Sprintf(reactionTpl,
		compactJSON(actuals), compactJSON(consensus), compactJSON(surprise),
		truncate(guidanceText(report), e.opts.GuidanceExcerpt))

	out, err := e.gw.Complete(ctx, prompt, e.opts.ReactionTokens)
	if err != nil {
		log.Warnf("市场反应调用失败: %v", err)
		return nil
	}
	var p reactionPayload
	if err := llm.DecodeJSON(out, &p); err != nil {
		log.Warnf("市场反应输出无法解析: %v", err)
		return nil
	}

	signal := model.GuidanceUnknown
	if p.GuidanceSignal != "" {
		signal = model.ParseGuidanceSignal(strings.ToLower(strings.TrimSpace(string(p.GuidanceSignal))))
	}
	return &model.MarketReaction{
		Driver:         string(p.Driver),
		BullCase:       string(p.BullCase),
		BearCase:       string(p.BearCase),
		BeatQuality:    string(p.BeatQuality),
		GuidanceSignal: signal,
		Summary:        string(p.Summary),
	}
}

type narrativePayload struct {
	ToneShift           model.Text     `json:"tone_shift"`
	NewRiskThemes       model.Insights `json:"new_risk_themes"`
	RemovedRiskThemes   model.Insights `json:"removed_risk_themes"`
	NewGrowthFocus      model.Insights `json:"new_growth_focus"`
	ManagementToneDelta model.Text     `json:"management_tone_delta"`
}

const narrativeTpl = `Compare the current filing with the prior filing of the same company.
PRIOR (%s, period end %s):
%s

CURRENT (%s, period end %s):
%s

Return strictly one JSON object:
{"tone_shift": "", "new_risk_themes": [], "removed_risk_themes": [], "new_growth_focus": [], "management_tone_delta": ""}`

// Narrative 与同一标的上一份报告对比；没有更早的报告时返回 nil
func (e *Enricher) Narrative(ctx context.Context, ref model.FilingRef, report *model.StructuredReport) *model.NarrativeChange {
	log := logger.Stage("narrative", ref.FilingKey)
	if e.prior == nil || report == nil {
		return nil
	}
	prior, err := e.prior.PriorForSubject(ctx, ref.Subject, ref.FilingKey)
	if err != nil {
		log.Warnf("查询历史报告失败: %v", err)
		return nil
	}
	if prior == nil || prior.Report == nil {
		log.Debug("没有更早的报告，跳过叙事对比")
		return nil
	}

	prompt := llm.Header(llm.TaskNarrative, ref.Subject) + fmt.Sprintf(narrativeTpl,
		prior.Ref.FilingKey, prior.Ref.PeriodEnd, CompactSummary(prior.Report, e.opts.SummaryMaxChars),
		ref.FilingKey, ref.PeriodEnd, CompactSummary(report, e.opts.SummaryMaxChars))

	out, err := e.gw.Complete(ctx, prompt, e.opts.NarrativeTokens)
	if err != nil {
		log.Warnf("叙事对比调用失败: %v", err)
		return nil
	}
	var p narrativePayload
	if err := llm.DecodeJSON(out, &p); err != nil {
		log.Warnf("叙事对比输出无法解析: %v", err)
		return nil
	}
	return &model.NarrativeChange{
		PriorFilingKey:      prior.Ref.FilingKey,
		PriorPeriodEnd:      prior.Ref.PeriodEnd,
		ToneShift:           string(p.ToneShift),
		NewRiskThemes:       nonEmpty(p.NewRiskThemes),
		RemovedRiskThemes:   nonEmpty(p.RemovedRiskThemes),
		NewGrowthFocus:      nonEmpty(p.NewGrowthFocus),
		ManagementToneDelta: string(p.ManagementToneDelta),
	}
}

const briefTpl = `Write a short brief (3 sentences at most) on what analysts expect from this company next.
Use only the consensus figures below. Plain text; <b> and <em> are allowed.
CONSENSUS: %s`

// Brief 只依据一致预期生成简报；模型不可用时返回确定性的描述
func (e *Enricher) Brief(ctx context.Context, snap *model.ConsensusSnapshot) string {
	if snap == nil || snap.Empty() {
		ticker := ""
		if snap != nil {
			ticker = snap.Ticker
		}
		return fmt.Sprintf("No consensus estimates are available for %s.", ticker)
	}
	prompt := llm.Header(llm.TaskBrief, snap.Ticker) + fmt.Sprintf(briefTpl, compactJSON(snap))
	out, err := e.gw.Complete(ctx, prompt, e.opts.BriefTokens)
	if err == nil {
		if brief := strings.TrimSpace(sanitize.Sanitize(llm.StripFences(out))); brief != "" {
			return brief
		}
	}
	logger.Log.WithField("stage", "brief").WithField("ticker", snap.Ticker).Warnf("简报生成失败，使用默认描述: %v", err)
	return fallbackBrief(snap)
}

func fallbackBrief(s *model.ConsensusSnapshot) string {
	var parts []string
	if s.EPS != nil {
		parts = append(parts, "EPS of "+strconv.FormatFloat(*s.EPS, 'f', 2, 64))
	}
	if s.Revenue != nil {
		parts = append(parts, "revenue of "+humanAmount(*s.Revenue))
	}
	if s.EBITDA != nil {
		parts = append(parts, "EBITDA of "+humanAmount(*s.EBITDA))
	}
	period := ""
	if s.Period != "" {
		period = " for the period ending " + s.Period
	}
	return fmt.Sprintf("Analysts expect %s%s (source: %s).", strings.Join(parts, ", "), period, s.Source)
}

func humanAmount(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e12:
		return strconv.FormatFloat(v/1e12, 'f', 2, 64) + "T"
	case abs >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 2, 64) + "B"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 2, 64) + "M"
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

// CompactSummary 把报告压缩成固定长度以内的文本摘要
func CompactSummary(r *model.StructuredReport, maxChars int) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s\n", r.Meta.Ticker, r.Meta.FilingType, r.Meta.PeriodEnd)
	for _, k := range r.Cover.KPIs {
		fmt.Fprintf(&sb, "%s: %s (%s)\n", k.Label, k.Value, k.Delta)
	}
	for _, s := range r.Sections {
		fmt.Fprintf(&sb, "[%s] %s\n", s.Type, s.Title)
		if s.Body != "" {
			sb.WriteString(string(s.Body) + "\n")
		}
		if in := s.Insights.Join("; "); in != "" {
			sb.WriteString(in + "\n")
		}
		for _, rk := range s.Risks {
			fmt.Fprintf(&sb, "- risk: %s\n", rk.Title)
		}
		for _, st := range s.Statements {
			fmt.Fprintf(&sb, "- guidance: %s\n", st.Text)
		}
	}
	return truncate(sb.String(), maxChars)
}

func guidanceText(r *model.StructuredReport) string {
	s := r.SectionByType(model.SectionGuidance)
	if s == nil {
		return ""
	}
	var parts []string
	for _, st := range s.Statements {
		parts = append(parts, string(st.Text))
	}
	if s.Body != "" {
		parts = append(parts, string(s.Body))
	}
	if in := s.Insights.Join("\n"); in != "" {
		parts = append(parts, in)
	}
	return strings.Join(parts, "\n")
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonEmpty(in model.Insights) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
