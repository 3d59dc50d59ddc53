package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

func TestHeaderRoundTrip(t *testing.T) {
	prompt := Header(TaskReduce, "ACME") + "body line\nSUBJECT: ignored\n"
	assert.Equal(t, TaskReduce, TaskOf(prompt))
	assert.Equal(t, "ACME", SubjectOf(prompt))
	assert.Equal(t, TaskUnknown, TaskOf("hello\nTASK: reduce_report"))
}

func TestStripFencesAndDecode(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))

	var v struct{ A int }
	require.NoError(t, DecodeJSON("Sure! Here it is:\n{\"A\": 2}\nThanks", &v))
	assert.Equal(t, 2, v.A)
	assert.Error(t, DecodeJSON("not json at all", &v))
}

func TestMockGateway_FixturesParse(t *testing.T) {
	ctx := context.Background()
	m := NewMockGateway()

	out, err := m.Complete(ctx, Header(TaskReduce, "ACME"), 100)
	require.NoError(t, err)
	var report model.StructuredReport
	require.NoError(t, DecodeJSON(out, &report))
	assert.Equal(t, model.SchemaVersion, report.Schema)
	assert.Len(t, report.Sections, model.SectionCount)
	assert.Len(t, report.Cover.KPIs, model.KPICount)
	assert.Equal(t, model.Text("ACME"), report.Meta.Ticker)

	out, err = m.Complete(ctx, Header(TaskExtract, "ACME"), 100)
	require.NoError(t, err)
	var bag model.FactsBag
	require.NoError(t, DecodeJSON(out, &bag))
	assert.Equal(t, 4, bag.ItemCount())

	_, err = m.Complete(ctx, "no header", 100)
	assert.Error(t, err)

	assert.Equal(t, 1, m.Calls(TaskReduce))
	assert.Equal(t, 1, m.Calls(TaskExtract))
	assert.Equal(t, 3, m.TotalCalls())
}

func TestMockGateway_Override(t *testing.T) {
	m := NewMockGateway()
	boom := errors.New("boom")
	m.Override(TaskReaction, func(context.Context, string) (string, error) { return "", boom })

	_, err := m.Complete(context.Background(), Header(TaskReaction, "ACME"), 10)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Calls(TaskReaction))
}

type recordingObserver struct {
	tasks []string
	errs  int
}

func (r *recordingObserver) ObserveLLMCall(task string, _ time.Duration, err error) {
	r.tasks = append(r.tasks, task)
	if err != nil {
		r.errs++
	}
}

func TestWithObserver(t *testing.T) {
	obs := &recordingObserver{}
	g := WithObserver(NewMockGateway(), obs)

	_, err := g.Complete(context.Background(), Header(TaskBrief, "ACME"), 10)
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), "garbage", 10)
	require.Error(t, err)

	assert.Equal(t, []string{"consensus_brief", "unknown"}, obs.tasks)
	assert.Equal(t, 1, obs.errs)
	assert.Equal(t, MockModel, g.Model())

	plain := NewMockGateway()
	assert.Same(t, plain, WithObserver(plain, nil))
}

func TestNewGateway(t *testing.T) {
	cfg := config.Default()
	g, err := NewGateway(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MockGateway{}, g)

	cfg.LLM.Provider = "claude"
	cfg.LLM.Model = "claude-sonnet-4-5"
	g, err = NewGateway(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", g.Model())

	cfg.LLM.Provider = "gemini"
	_, err = NewGateway(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(config.ConcurrencyConfig{})
	assert.Equal(t, 1, l.Burst())
	l = NewLimiter(config.ConcurrencyConfig{QPS: 5, RPM: 120})
	assert.Equal(t, 5, l.Burst())
	assert.InDelta(t, 2.0, float64(l.Limit()), 1e-9)
}
