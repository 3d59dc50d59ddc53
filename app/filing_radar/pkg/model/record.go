package model

import "time"

// ErrorState 记录的错误状态
type ErrorState string

const (
	ErrorNone       ErrorState = ""
	ErrorGeneration ErrorState = "generation_error"
	ErrorSchema     ErrorState = "schema_error"
)

// ReportOutput 持久化单元，同一文件可有多条，按时间取最新；它本身就是缓存
type ReportOutput struct {
	ID            string             `json:"id"`
	Ref           FilingRef          `json:"ref"`
	SchemaVersion string             `json:"schema_version"`
	Report        *StructuredReport  `json:"report,omitempty"`
	Rendered      string             `json:"-"`
	Model         string             `json:"model"`
	ErrorState    ErrorState         `json:"error_state,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Consensus     *ConsensusSnapshot `json:"consensus,omitempty"`
	Actuals       *ActualsSnapshot   `json:"actuals,omitempty"`
	Surprise      *SurpriseSnapshot  `json:"surprise,omitempty"`
	Reaction      *MarketReaction    `json:"market_reaction,omitempty"`
	Narrative     *NarrativeChange   `json:"narrative_change,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Absorb 把 next 中已有的字段合并进 r，记录只增加字段，不会被空值覆盖
func (r *ReportOutput) Absorb(next *ReportOutput) {
	if next == nil {
		return
	}
	if next.Report != nil {
		r.Report = next.Report
		r.SchemaVersion = next.SchemaVersion
	}
	if next.Rendered != "" {
		r.Rendered = next.Rendered
	}
	if next.Model != "" {
		r.Model = next.Model
	}
	if next.ErrorState != ErrorNone || next.Report != nil {
		r.ErrorState = next.ErrorState
		r.ErrorMessage = next.ErrorMessage
	}
	if next.Consensus != nil {
		r.Consensus = next.Consensus
	}
	if next.Actuals != nil {
		r.Actuals = next.Actuals
	}
	if next.Surprise != nil {
		r.Surprise = next.Surprise
	}
	if next.Reaction != nil {
		r.Reaction = next.Reaction
	}
	if next.Narrative != nil {
		r.Narrative = next.Narrative
	}
	if !next.UpdatedAt.IsZero() {
		r.UpdatedAt = next.UpdatedAt
	}
}
