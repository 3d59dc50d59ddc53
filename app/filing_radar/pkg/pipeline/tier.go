package pipeline

import "github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"

// Tier 缓存层级，决定本次请求跳过哪些阶段
type Tier string

const (
	// TierFull 报告、渲染结果与富化都已存在，直接返回
	TierFull Tier = "full"
	// TierReportOnly 只有报告可用，重新执行富化与渲染
	TierReportOnly Tier = "report_only"
	// TierNone 执行全部阶段
	TierNone Tier = "none"
)

// Flags 由持久化记录推导出的缓存标记
type Flags struct {
	HasReport     bool
	HasRender     bool
	HasEnrichment bool
}

// FlagsOf 从最新记录推导缓存标记；schema 版本不一致或生成失败的记录视为没有报告
func FlagsOf(rec *model.ReportOutput) Flags {
	if rec == nil {
		return Flags{}
	}
	return Flags{
		HasReport: rec.Report != nil &&
			rec.SchemaVersion == model.SchemaVersion &&
			rec.ErrorState != model.ErrorGeneration,
		HasRender:     rec.Rendered != "",
		HasEnrichment: rec.Reaction != nil,
	}
}

// DecideTier 缓存层级判定，是记录状态与 force 的纯函数
func DecideTier(f Flags, force bool) Tier {
	switch {
	case force || !f.HasReport:
		return TierNone
	case f.HasRender && f.HasEnrichment:
		return TierFull
	default:
		return TierReportOnly
	}
}
