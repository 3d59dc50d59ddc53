package enrich

import (
	"math"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// ComputeSurprise (actual - expected) / |expected| * 100，保留两位小数；任一为空或预期为 0 时返回 nil
func ComputeSurprise(actual, expected *float64) *float64 {
	if actual == nil || expected == nil || *expected == 0 {
		return nil
	}
	v := (*actual - *expected) / math.Abs(*expected) * 100
	v = math.Round(v*100) / 100
	return &v
}

// BuildSurprise 计算各指标偏离，并选出绝对值最大的驱动指标（并列时按 eps、revenue、ebitda 顺序取先者）
func BuildSurprise(actuals *model.ActualsSnapshot, consensus *model.ConsensusSnapshot) *model.SurpriseSnapshot {
	if actuals == nil {
		actuals = &model.ActualsSnapshot{}
	}
	if consensus == nil {
		consensus = &model.ConsensusSnapshot{}
	}
	out := &model.SurpriseSnapshot{
		EPS:     ComputeSurprise(actuals.EPS, consensus.EPS),
		Revenue: ComputeSurprise(actuals.Revenue, consensus.Revenue),
		EBITDA:  ComputeSurprise(actuals.EBITDA, consensus.EBITDA),
	}

	candidates := []struct {
		metric model.Metric
		value  *float64
	}{
		{model.MetricEPS, out.EPS},
		{model.MetricRevenue, out.Revenue},
		{model.MetricEBITDA, out.EBITDA},
	}
	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		if out.DriverValue == nil || math.Abs(*c.value) > math.Abs(*out.DriverValue) {
			out.Driver = c.metric
			v := *c.value
			out.DriverValue = &v
		}
	}
	return out
}
