package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

func fixture() *model.ReportOutput {
	eps := 1.45
	exp := 1.40
	sur := 3.57
	return &model.ReportOutput{
		Ref:           model.FilingRef{Subject: "ACME", FilingKey: "k1"},
		SchemaVersion: model.SchemaVersion,
		Model:         "mock",
		Report: &model.StructuredReport{
			Schema: model.SchemaVersion,
			Cover:  model.Cover{Title: "Acme Q2 <2025>", KPIs: []model.KPI{{Label: "Revenue", Value: "$1.20B"}}},
			TOC:    []model.TOCEntry{{ID: "s1", Title: "Overview"}},
			Sections: []model.Section{{
				ID:       "s1",
				Type:     model.SectionOverview,
				Title:    "Overview",
				Body:     "Strong <b>quarter</b>",
				Insights: model.Insights{"Margins <i>expanded</i>"},
			}},
		},
		Consensus: &model.ConsensusSnapshot{EPS: &exp, Source: "static"},
		Actuals:   &model.ActualsSnapshot{EPS: &eps},
		Surprise:  &model.SurpriseSnapshot{EPS: &sur},
		Reaction:  &model.MarketReaction{BullCase: "**Beat** on EPS", BearCase: "<script>x()</script>soft guide", GuidanceSignal: model.GuidanceRaised},
		Narrative: &model.NarrativeChange{PriorFilingKey: "k0", NewRiskThemes: []string{"tariffs", "fx"}},
	}
}

func TestRender(t *testing.T) {
	out, err := Render(fixture())
	require.NoError(t, err)

	assert.Contains(t, out, "Acme Q2 &lt;2025&gt;")
	assert.Contains(t, out, "Strong <b>quarter</b>")
	assert.Contains(t, out, "<li>Margins <i>expanded</i></li>")
	assert.Contains(t, out, "<strong>Beat</strong>")
	assert.NotContains(t, out, "<script>x()")
	assert.Contains(t, out, "+3.57%")
	assert.Contains(t, out, "tariffs, fx")
	assert.Contains(t, out, `id="s1"`)
}

func TestRender_NoReport(t *testing.T) {
	_, err := Render(&model.ReportOutput{})
	assert.Error(t, err)
	_, err = Render(nil)
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	out := Placeholder("ACME", "<k1>")
	assert.True(t, strings.Contains(out, "&lt;k1&gt;"))
	assert.Contains(t, out, "/api/reports/generate")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1.20B", formatNumber(1.2e9))
	assert.Equal(t, "-340.00M", formatNumber(-3.4e8))
	assert.Equal(t, "1.45", formatNumber(1.45))
	assert.Equal(t, "", string(Markdown("  ")))
}
