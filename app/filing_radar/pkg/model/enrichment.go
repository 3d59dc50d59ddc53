package model

import "time"

// ConsensusSnapshot 分析师一致预期快照，获取失败时各数值为 nil
type ConsensusSnapshot struct {
	Ticker    string    `json:"ticker"`
	EPS       *float64  `json:"eps"`
	Revenue   *float64  `json:"revenue"`
	EBITDA    *float64  `json:"ebitda"`
	Currency  string    `json:"currency"`
	Source    string    `json:"source"`
	Period    string    `json:"period"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Empty 所有预期值都为空
func (c *ConsensusSnapshot) Empty() bool {
	return c == nil || (c.EPS == nil && c.Revenue == nil && c.EBITDA == nil)
}

// ActualsSnapshot 从结构化报告中确定性解析出的实际值
type ActualsSnapshot struct {
	EPS              *float64 `json:"eps"`
	Revenue          *float64 `json:"revenue"`
	EBITDA           *float64 `json:"ebitda"`
	GuidanceMidpoint *float64 `json:"guidance_midpoint"`
}

// Metric 参与超预期计算的指标名
type Metric string

const (
	MetricEPS     Metric = "eps"
	MetricRevenue Metric = "revenue"
	MetricEBITDA  Metric = "ebitda"
)

// SurpriseSnapshot 各指标相对一致预期的偏离百分比
type SurpriseSnapshot struct {
	EPS         *float64 `json:"eps"`
	Revenue     *float64 `json:"revenue"`
	EBITDA      *float64 `json:"ebitda"`
	Driver      Metric   `json:"driver,omitempty"`
	DriverValue *float64 `json:"driver_value"`
}

// GuidanceSignal 指引信号
type GuidanceSignal string

const (
	GuidanceRaised     GuidanceSignal = "raised"
	GuidanceMaintained GuidanceSignal = "maintained"
	GuidanceLowered    GuidanceSignal = "lowered"
	GuidanceInitiated  GuidanceSignal = "initiated"
	GuidanceNone       GuidanceSignal = "none"
	GuidanceUnknown    GuidanceSignal = "unknown"
)

// ParseGuidanceSignal 解析模型给出的指引信号，无法识别时返回 unknown
func ParseGuidanceSignal(s string) GuidanceSignal {
	switch g := GuidanceSignal(s); g {
	case GuidanceRaised, GuidanceMaintained, GuidanceLowered, GuidanceInitiated, GuidanceNone:
		return g
	default:
		return GuidanceUnknown
	}
}

// MarketReaction 市场反应叙述
type MarketReaction struct {
	Driver         string         `json:"driver"`
	BullCase       string         `json:"bull_case"`
	BearCase       string         `json:"bear_case"`
	BeatQuality    string         `json:"beat_quality"`
	GuidanceSignal GuidanceSignal `json:"guidance_signal"`
	Summary        string         `json:"summary"`
}

// NarrativeChange 与同一标的上一份报告的叙事对比
type NarrativeChange struct {
	PriorFilingKey      string   `json:"prior_filing_key"`
	PriorPeriodEnd      string   `json:"prior_period_end"`
	ToneShift           string   `json:"tone_shift"`
	NewRiskThemes       []string `json:"new_risk_themes"`
	RemovedRiskThemes   []string `json:"removed_risk_themes"`
	NewGrowthFocus      []string `json:"new_growth_focus"`
	ManagementToneDelta string   `json:"management_tone_delta"`
}
