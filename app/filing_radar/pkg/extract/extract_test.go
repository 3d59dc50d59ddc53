package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

var testRef = model.FilingRef{Subject: "ACME", FilingKey: "0000000001-25-000001", DocType: "10-Q", PeriodEnd: "2025-06-30", FiledDate: "2025-08-01"}

func chunks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1)
	}
	return out
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestMap_CapsChunksAndDropsFailures(t *testing.T) {
	gw := llm.NewMockGateway()
	var n atomic.Int32
	gw.Override(llm.TaskExtract, func(_ context.Context, prompt string) (string, error) {
		switch n.Add(1) {
		case 1:
			return "this is not json", nil
		case 2:
			return "", errors.New("upstream 500")
		default:
			return `{"revenue":[{"label":"Total revenue","value":"$1.2B"}],"key_metrics":{"eps":"1.10"}}`, nil
		}
	})

	e := New(gw, Options{MaxChunks: 4, Workers: 1})
	bags := e.Map(context.Background(), testRef, chunks(9))

	assert.Equal(t, 4, gw.Calls(llm.TaskExtract))
	assert.Len(t, bags, 2)
	merged := model.MergeFacts(bags...)
	assert.Len(t, merged.Revenue, 1)
}

func TestMap_AllFailYieldsEmpty(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Override(llm.TaskExtract, func(context.Context, string) (string, error) { return "```\n[]oops", nil })

	bags := New(gw, Options{MaxChunks: 6, Workers: 3}).Map(context.Background(), testRef, chunks(3))
	assert.Empty(t, bags)
	assert.Equal(t, 0, model.MergeFacts(bags...).ItemCount())
}

func TestRun_ProducesReportAndFillsMeta(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Override(llm.TaskReduce, func(ctx context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "Supply chain concentration")
		r := llm.MockReport("ACME")
		r.Meta = model.ReportMeta{}
		return mustMarshal(t, r), nil
	})

	e := New(gw, Options{MaxChunks: 6, Workers: 2})
	report, err := e.Run(context.Background(), testRef, &model.FilingTextArtifact{Chunks: chunks(3)})
	require.NoError(t, err)

	assert.Len(t, report.Sections, model.SectionCount)
	assert.Equal(t, model.Text("ACME"), report.Meta.Ticker)
	assert.Equal(t, model.Text("2025-06-30"), report.Meta.PeriodEnd)
	assert.Equal(t, 3, gw.Calls(llm.TaskExtract))
	assert.Equal(t, 1, gw.Calls(llm.TaskReduce))
}

func TestReduce_ParseFailureIsFatal(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Override(llm.TaskReduce, func(context.Context, string) (string, error) { return "I cannot comply", nil })

	_, err := New(gw, Options{}).Reduce(context.Background(), testRef, nil)
	assert.ErrorIs(t, err, ErrReduce)

	gw.Override(llm.TaskReduce, func(context.Context, string) (string, error) { return "", errors.New("timeout") })
	_, err = New(gw, Options{}).Reduce(context.Background(), testRef, nil)
	assert.ErrorIs(t, err, ErrReduce)
}

func TestReducePrompt_ListsLayout(t *testing.T) {
	p := reducePrompt(testRef, &model.FactsBag{})
	assert.Equal(t, llm.TaskReduce, llm.TaskOf(p))
	assert.Equal(t, "ACME", llm.SubjectOf(p))
	assert.Contains(t, p, `s10: type "analyst_takeaways"`)
	assert.Contains(t, p, model.SchemaVersion)
}
