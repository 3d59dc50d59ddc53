package model

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func fingerprints(items []FactItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, Fingerprint(it))
	}
	sort.Strings(out)
	return out
}

func TestMergeFacts_DedupAndFirstNonNil(t *testing.T) {
	a := &FactsBag{
		Revenue:    []FactItem{{"label": "Total revenue", "value": "$1.2B"}},
		KeyMetrics: KeyMetrics{EPS: strp("1.10")},
	}
	b := &FactsBag{
		Revenue:    []FactItem{{"value": "$1.2B", "label": "Total revenue"}, {"label": "Services", "value": "$300M"}},
		Risks:      []FactItem{{"title": "FX"}},
		KeyMetrics: KeyMetrics{EPS: strp("9.99"), Revenue: strp("$1.2B")},
		Period:     PeriodInfo{Currency: strp("")},
	}

	merged := MergeFacts(a, nil, b)
	assert.Len(t, merged.Revenue, 2)
	assert.Len(t, merged.Risks, 1)
	require.NotNil(t, merged.KeyMetrics.EPS)
	assert.Equal(t, "1.10", *merged.KeyMetrics.EPS)
	assert.Equal(t, "$1.2B", *merged.KeyMetrics.Revenue)
	assert.Nil(t, merged.Period.Currency)
	assert.Equal(t, 3, merged.ItemCount())
}

func TestMergeFacts_Associative(t *testing.T) {
	a := &FactsBag{Guidance: []FactItem{{"text": "FY revenue $10-11B"}}, KeyMetrics: KeyMetrics{EBITDA: strp("2B")}}
	b := &FactsBag{Guidance: []FactItem{{"text": "FY revenue $10-11B"}, {"text": "margin flat"}}}
	c := &FactsBag{Guidance: []FactItem{{"text": "margin flat"}, {"text": "capex up"}}, KeyMetrics: KeyMetrics{EBITDA: strp("3B")}}

	stepwise := MergeFacts(MergeFacts(a, b), c)
	direct := MergeFacts(a, b, c)
	reordered := MergeFacts(c, MergeFacts(b, a))

	assert.Equal(t, fingerprints(direct.Guidance), fingerprints(stepwise.Guidance))
	assert.Equal(t, fingerprints(direct.Guidance), fingerprints(reordered.Guidance))
	assert.Equal(t, *direct.KeyMetrics.EBITDA, *stepwise.KeyMetrics.EBITDA)
}

func TestText_TolerantUnmarshal(t *testing.T) {
	var s Section
	raw := `{"id":"s2","type":"metrics_table","title":7,"insights":["ok",3,null,{"x":1}],
		"rows":[{"label":"Revenue","current":1200000000,"prior":null,"change":true}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, Text("s2"), s.ID)
	assert.Equal(t, Text("7"), s.Title)
	assert.Equal(t, Insights{"ok", "", "", ""}, s.Insights)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, Text("1200000000"), s.Rows[0].Current)
	assert.Equal(t, Text(""), s.Rows[0].Prior)
	assert.Equal(t, Text("true"), s.Rows[0].Change)
}

func TestInsights_SingleString(t *testing.T) {
	var in Insights
	require.NoError(t, json.Unmarshal([]byte(`"just one"`), &in))
	assert.Equal(t, Insights{"just one"}, in)
	assert.Equal(t, "a; b", Insights{"a", " ", "b"}.Join("; "))
}

func TestReportOutput_AbsorbOnlyAdds(t *testing.T) {
	eps := 1.5
	rec := &ReportOutput{
		Report:    &StructuredReport{Schema: SchemaVersion},
		Rendered:  "<html>old</html>",
		Consensus: &ConsensusSnapshot{Ticker: "ACME", EPS: &eps},
	}
	rec.Absorb(&ReportOutput{Reaction: &MarketReaction{Driver: "eps"}})

	assert.NotNil(t, rec.Report)
	assert.Equal(t, "<html>old</html>", rec.Rendered)
	assert.NotNil(t, rec.Consensus)
	assert.Equal(t, "eps", rec.Reaction.Driver)
}

func TestParseGuidanceSignal(t *testing.T) {
	assert.Equal(t, GuidanceRaised, ParseGuidanceSignal("raised"))
	assert.Equal(t, GuidanceUnknown, ParseGuidanceSignal("Raised!"))
}
