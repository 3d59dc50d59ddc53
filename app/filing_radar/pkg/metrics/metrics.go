package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 流水线的 Prometheus 指标；nil 接收者上的方法均为空操作
type Metrics struct {
	reg *prometheus.Registry

	LLMCalls        *prometheus.CounterVec
	LLMDuration     *prometheus.HistogramVec
	Generations     *prometheus.CounterVec
	CacheTiers      *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	ConsensusLookup *prometheus.CounterVec
}

// New 在独立的 registry 上注册全部指标，测试中可重复创建
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		LLMCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filing_radar_llm_calls_total",
				Help: "Generative-text calls by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		LLMDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filing_radar_llm_call_duration_seconds",
				Help:    "Generative-text call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		),
		Generations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filing_radar_generations_total",
				Help: "Generation requests by resulting status",
			},
			[]string{"status"},
		),
		CacheTiers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filing_radar_cache_tier_total",
				Help: "Cache tier decisions",
			},
			[]string{"tier"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filing_radar_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		ConsensusLookup: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filing_radar_consensus_lookups_total",
				Help: "Consensus lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
	}
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry 底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveLLMCall 记录一次模型调用
func (m *Metrics) ObserveLLMCall(task string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(task, outcome).Inc()
	m.LLMDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveConsensus 记录一次一致预期查询
func (m *Metrics) ObserveConsensus(result string) {
	if m == nil {
		return
	}
	m.ConsensusLookup.WithLabelValues(result).Inc()
}

// ObserveGeneration 记录一次生成请求的结果
func (m *Metrics) ObserveGeneration(status string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(status).Inc()
}

// ObserveTier 记录缓存层级判定
func (m *Metrics) ObserveTier(tier string) {
	if m == nil {
		return
	}
	m.CacheTiers.WithLabelValues(tier).Inc()
}

// ObserveStage 记录阶段耗时
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
