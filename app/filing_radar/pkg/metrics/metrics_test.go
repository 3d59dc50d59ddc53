package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservations(t *testing.T) {
	m := New()
	m.ObserveLLMCall("reduce_report", time.Second, nil)
	m.ObserveLLMCall("reduce_report", time.Second, errors.New("x"))
	m.ObserveConsensus("hit")
	m.ObserveGeneration("generated")
	m.ObserveTier("full")
	m.ObserveStage("extract", 50*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("reduce_report", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("reduce_report", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("generated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheTiers.WithLabelValues("full")))

	// 每个实例使用独立 registry，不会重复注册
	_ = New()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveConsensus("miss")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `filing_radar_consensus_lookups_total{result="miss"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLLMCall("x", 0, nil)
		m.ObserveConsensus("hit")
		m.ObserveGeneration("cached")
		m.ObserveTier("none")
		m.ObserveStage("render", 0)
	})
	assert.Nil(t, m.Registry())
}
