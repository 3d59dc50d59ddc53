package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// Check 检查报告的结构约束，返回全部违规项；合格时返回 nil
func Check(r *model.StructuredReport) []string {
	if r == nil {
		return []string{"report is missing"}
	}
	var errs []string
	if r.Schema != model.SchemaVersion {
		errs = append(errs, fmt.Sprintf("schema must be %q, got %q", model.SchemaVersion, r.Schema))
	}
	if n := len(r.Cover.KPIs); n != model.KPICount {
		errs = append(errs, fmt.Sprintf("cover.kpis must have %d entries, got %d", model.KPICount, n))
	}
	if n := len(r.TOC); n != model.SectionCount {
		errs = append(errs, fmt.Sprintf("toc must have %d entries, got %d", model.SectionCount, n))
	}
	if n := len(r.Sections); n != model.SectionCount {
		errs = append(errs, fmt.Sprintf("sections must have %d entries, got %d", model.SectionCount, n))
	}
	for i, s := range r.Sections {
		if want := model.SectionID(i); string(s.ID) != want {
			errs = append(errs, fmt.Sprintf("sections[%d].id must be %q, got %q", i, want, s.ID))
		}
	}
	return errs
}

const repairTpl = `The JSON report below violates these structural rules:
%s
Fix every violation and return the complete corrected report as one JSON object.
Rules: schema %q, exactly %d cover.kpis, exactly %d toc entries, exactly %d sections with ids s1..s%d in order.

REPORT:
%s`

// Repairer 结构不合格时发起一次修复调用
type Repairer struct {
	gw        llm.Gateway
	maxTokens int
}

// NewRepairer 创建 Repairer
func NewRepairer(gw llm.Gateway, maxTokens int) *Repairer {
	return &Repairer{gw: gw, maxTokens: maxTokens}
}

// Ensure 校验报告；不合格时修复一次并复检，无论结果如何都接受，返回最终报告与残留错误
func (r *Repairer) Ensure(ctx context.Context, ref model.FilingRef, report *model.StructuredReport) (*model.StructuredReport, []string) {
	errs := Check(report)
	if len(errs) == 0 {
		return report, nil
	}
	log := logger.Stage("validate", ref.FilingKey)
	log.Warnf("报告结构不合格，尝试修复一次: %s", strings.Join(errs, "; "))

	data, _ := json.Marshal(report)
	prompt := llm.Header(llm.TaskRepair, ref.Subject) + fmt.Sprintf(repairTpl,
		"- "+strings.Join(errs, "\n- "), model.SchemaVersion,
		model.KPICount, model.SectionCount, model.SectionCount, model.SectionCount, data)

	out, err := r.gw.Complete(ctx, prompt, r.maxTokens)
	if err != nil {
		log.Errorf("修复调用失败，保留原报告: %v", err)
		return report, errs
	}
	var repaired model.StructuredReport
	if err := llm.DecodeJSON(out, &repaired); err != nil {
		log.Errorf("修复输出无法解析，保留原报告: %v", err)
		return report, errs
	}

	residual := Check(&repaired)
	if len(residual) > 0 {
		log.Errorf("修复后仍有 %d 处结构错误: %s", len(residual), strings.Join(residual, "; "))
	}
	return &repaired, residual
}
