package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/consensus"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/enrich"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/extract"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/filing"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/keylock"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/metrics"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/render"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/sanitize"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/textprep"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/validate"
)

// Status 生成请求的结果
type Status string

const (
	StatusCached     Status = "cached"
	StatusEnriched   Status = "enriched"
	StatusGenerated  Status = "generated"
	StatusGenerating Status = "generating"
	StatusError      Status = "error"
)

// PollStatus 状态轮询的结果
type PollStatus string

const (
	PollNotStarted PollStatus = "not_started"
	PollGenerating PollStatus = "generating"
	PollDone       PollStatus = "done"
	PollError      PollStatus = "error"
)

// Store 流水线唯一写入的共享资源
type Store interface {
	Latest(ctx context.Context, filingKey string) (*model.ReportOutput, error)
	PriorForSubject(ctx context.Context, subject, excludeFilingKey string) (*model.ReportOutput, error)
	Save(ctx context.Context, rec *model.ReportOutput) error
}

// Result 一次生成请求的返回
type Result struct {
	Status    Status
	Subject   string
	FilingKey string
	ReportURL string
	JSONURL   string
	Message   string
	Record    *model.ReportOutput
}

// Poll 状态轮询返回
type Poll struct {
	Status  PollStatus
	Message string
}

// Deps 流水线依赖
type Deps struct {
	Store     Store
	Source    filing.Source
	Gateway   llm.Gateway
	Consensus *consensus.Service
	Locks     *keylock.Registry
	Render    render.Func
	Metrics   *metrics.Metrics
}

// Pipeline 顶层协调者：缓存层级判定、按 key 互斥、阶段编排与持久化
type Pipeline struct {
	cfg  config.PipelineConfig
	deps Deps

	prep      textprep.Options
	extractor *extract.Extractor
	repairer  *validate.Repairer
	enricher  *enrich.Enricher

	// failures 未能持久化任何记录的失败（例如获取文件失败），供状态轮询使用
	mu       sync.Mutex
	failures map[string]string
}

// New 创建流水线
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Locks == nil {
		deps.Locks = keylock.New()
	}
	if deps.Render == nil {
		deps.Render = render.Render
	}
	p := cfg.Pipeline
	tokens := cfg.LLM.MaxTokens
	return &Pipeline{
		cfg:  p,
		deps: deps,
		prep: textprep.Options{
			ParserThreshold:  p.ParserThreshold,
			WindowLines:      p.WindowLines,
			MaxRelevantChars: p.MaxRelevantChars,
			ChunkSize:        p.ChunkSize,
			ChunkOverlap:     p.ChunkOverlap,
		},
		extractor: extract.New(deps.Gateway, extract.Options{
			MaxChunks:     p.MaxChunks,
			Workers:       cfg.Concurrency.MapWorkers,
			ExtractTokens: tokens.Extract,
			ReduceTokens:  tokens.Reduce,
		}),
		repairer: validate.NewRepairer(deps.Gateway, tokens.Repair),
		enricher: enrich.New(deps.Gateway, deps.Store, enrich.Options{
			GuidanceExcerpt: p.GuidanceExcerpt,
			SummaryMaxChars: p.SummaryMaxChars,
			ReactionTokens:  tokens.Reaction,
			NarrativeTokens: tokens.Narrative,
			BriefTokens:     tokens.Brief,
		}),
		failures: make(map[string]string),
	}
}

// Build 按配置组装全部依赖
func Build(ctx context.Context, cfg *config.Config, store Store, m *metrics.Metrics) (*Pipeline, error) {
	gw, err := llm.NewGateway(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	cons, err := consensus.FromConfig(cfg.Consensus, m)
	if err != nil {
		return nil, fmt.Errorf("一致预期服务初始化失败: %w", err)
	}
	return New(cfg, Deps{
		Store:     store,
		Source:    filing.NewDirSource(cfg.Filings.Dir, cfg.Filings.MaxBytes),
		Gateway:   llm.WithObserver(gw, m),
		Consensus: cons,
		Locks:     keylock.New(),
		Render:    render.Render,
		Metrics:   m,
	}), nil
}

// Consensus 一致预期服务
func (p *Pipeline) Consensus() *consensus.Service { return p.deps.Consensus }

// Generate 同步执行一次生成；同一 key 已有生成在进行时立即返回 generating
func (p *Pipeline) Generate(ctx context.Context, subject, filingKey string, force bool) (*Result, error) {
	subject = normalizeSubject(subject)
	unlock, ok := p.deps.Locks.TryLock(filingKey)
	if !ok {
		return p.result(StatusGenerating, subject, filingKey, nil), nil
	}
	defer unlock()

	p.clearFailure(filingKey)
	// 调用方超时或断开不中断生成，结果照常持久化
	return p.run(context.WithoutCancel(ctx), subject, filingKey, force)
}

// Start 在调用方持有锁的情况下判定缓存；完整命中时直接返回，否则把锁交给后台任务并返回 generating
func (p *Pipeline) Start(ctx context.Context, subject, filingKey string, force bool) (*Result, error) {
	subject = normalizeSubject(subject)
	unlock, ok := p.deps.Locks.TryLock(filingKey)
	if !ok {
		return p.result(StatusGenerating, subject, filingKey, nil), nil
	}

	rec, err := p.latest(ctx, subject, filingKey)
	if err != nil {
		unlock()
		return nil, err
	}
	if DecideTier(FlagsOf(rec), force) == TierFull {
		unlock()
		p.deps.Metrics.ObserveTier(string(TierFull))
		p.deps.Metrics.ObserveGeneration(string(StatusCached))
		return p.result(StatusCached, subject, filingKey, rec), nil
	}

	p.clearFailure(filingKey)
	// 后台任务不继承请求的 context，请求结束后生成仍继续
	go func() {
		defer unlock()
		if _, err := p.run(context.Background(), subject, filingKey, force); err != nil {
			logger.Stage("pipeline", filingKey).Errorf("后台生成失败: %v", err)
		}
	}()
	return p.result(StatusGenerating, subject, filingKey, nil), nil
}

// Status 轮询生成状态：进行中、未持久化的失败、最新记录，依次判定
func (p *Pipeline) Status(ctx context.Context, filingKey string) (*Poll, error) {
	if p.deps.Locks.Held(filingKey) {
		return &Poll{Status: PollGenerating}, nil
	}
	if msg, ok := p.failure(filingKey); ok {
		return &Poll{Status: PollError, Message: msg}, nil
	}
	rec, err := p.deps.Store.Latest(ctx, filingKey)
	if err != nil {
		return nil, err
	}
	switch {
	case rec == nil:
		return &Poll{Status: PollNotStarted}, nil
	case rec.ErrorState == model.ErrorGeneration:
		return &Poll{Status: PollError, Message: rec.ErrorMessage}, nil
	default:
		return &Poll{Status: PollDone, Message: rec.ErrorMessage}, nil
	}
}

// Latest 某个文件最新的记录
func (p *Pipeline) Latest(ctx context.Context, filingKey string) (*model.ReportOutput, error) {
	return p.deps.Store.Latest(ctx, filingKey)
}

// Brief 只依据一致预期生成简报，与任何文件无关
func (p *Pipeline) Brief(ctx context.Context, subject string) (*model.ConsensusSnapshot, string) {
	subject = normalizeSubject(subject)
	var snap *model.ConsensusSnapshot
	if p.deps.Consensus != nil {
		snap = p.deps.Consensus.Get(ctx, subject)
	} else {
		snap = &model.ConsensusSnapshot{Ticker: subject, Source: "none"}
	}
	return snap, p.enricher.Brief(ctx, snap)
}

func (p *Pipeline) run(ctx context.Context, subject, filingKey string, force bool) (*Result, error) {
	log := logger.Stage("pipeline", filingKey)

	rec, err := p.latest(ctx, subject, filingKey)
	if err != nil {
		return nil, err
	}
	tier := DecideTier(FlagsOf(rec), force)
	p.deps.Metrics.ObserveTier(string(tier))
	log.Infof("缓存层级: %s (force=%v)", tier, force)

	var res *Result
	switch tier {
	case TierFull:
		res = p.result(StatusCached, subject, filingKey, rec)
	case TierReportOnly:
		res, err = p.refresh(ctx, rec)
	default:
		res, err = p.generate(ctx, subject, filingKey)
	}
	if err != nil {
		p.recordFailure(filingKey, err)
		p.deps.Metrics.ObserveGeneration(string(StatusError))
		return nil, err
	}
	p.deps.Metrics.ObserveGeneration(string(res.Status))
	log.Infof("生成结束: %s", res.Status)
	return res, nil
}

// latest 取缓存判定用的记录；属于其他公司的同 key 记录不参与缓存
func (p *Pipeline) latest(ctx context.Context, subject, filingKey string) (*model.ReportOutput, error) {
	rec, err := p.deps.Store.Latest(ctx, filingKey)
	if err != nil {
		return nil, fmt.Errorf("load latest record: %w", err)
	}
	if rec != nil && !strings.EqualFold(rec.Ref.Subject, subject) {
		logger.Stage("pipeline", filingKey).Warnf("缓存记录属于 %s，与请求的 %s 不符，忽略", rec.Ref.Subject, subject)
		return nil, nil
	}
	return rec, nil
}

// refresh 报告可用，只重新执行富化与渲染，并在原记录上更新
func (p *Pipeline) refresh(ctx context.Context, rec *model.ReportOutput) (*Result, error) {
	// Model 保持为生成报告的模型
	update := &model.ReportOutput{ID: rec.ID, Ref: rec.Ref}
	p.enrich(ctx, rec.Ref, rec.Report, update)

	merged := *rec
	merged.Absorb(update)
	update.Rendered = p.render(&merged)

	if err := p.timed("persist", rec.Ref.FilingKey, func() error { return p.deps.Store.Save(ctx, update) }); err != nil {
		return nil, fmt.Errorf("persist enrichment: %w", err)
	}
	return p.result(StatusEnriched, rec.Ref.Subject, rec.Ref.FilingKey, update), nil
}

// generate 执行全部阶段并新建一条记录
func (p *Pipeline) generate(ctx context.Context, subject, filingKey string) (*Result, error) {
	var doc *filing.Document
	err := p.timed("fetch", filingKey, func() (err error) {
		doc, err = p.deps.Source.Fetch(ctx, subject, filingKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	ref := doc.Ref

	var art *model.FilingTextArtifact
	_ = p.timed("textprep", filingKey, func() error {
		art = textprep.Prepare(doc.Body, doc.Markup, p.prep)
		return nil
	})
	logger.Stage("textprep", filingKey).Infof("相关文本 %d 字符，%d 个分块，主题 %v", len([]rune(art.RelevantText)), len(art.Chunks), art.Topics)

	var report *model.StructuredReport
	err = p.timed("extract", filingKey, func() (err error) {
		report, err = p.extractor.Run(ctx, ref, art)
		return err
	})
	if err != nil {
		logger.Stage("reduce", filingKey).Errorf("归约失败: %v", err)
		failed := &model.ReportOutput{
			Ref:          ref,
			Model:        p.deps.Gateway.Model(),
			ErrorState:   model.ErrorGeneration,
			ErrorMessage: err.Error(),
		}
		if serr := p.deps.Store.Save(ctx, failed); serr != nil {
			return nil, fmt.Errorf("persist generation error: %w", serr)
		}
		res := p.result(StatusError, ref.Subject, filingKey, failed)
		res.Message = err.Error()
		return res, nil
	}

	var residual []string
	_ = p.timed("validate", filingKey, func() error {
		report, residual = p.repairer.Ensure(ctx, ref, report)
		return nil
	})
	sanitize.Report(report)

	out := &model.ReportOutput{
		Ref:           ref,
		SchemaVersion: model.SchemaVersion,
		Report:        report,
		Model:         p.deps.Gateway.Model(),
	}
	if len(residual) > 0 {
		out.ErrorState = model.ErrorSchema
		out.ErrorMessage = strings.Join(residual, "; ")
	}
	p.enrich(ctx, ref, report, out)
	out.Rendered = p.render(out)

	if err := p.timed("persist", filingKey, func() error { return p.deps.Store.Save(ctx, out) }); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}
	return p.result(StatusGenerated, ref.Subject, filingKey, out), nil
}

// enrich 富化链，各阶段失败时以 nil 向下传递
func (p *Pipeline) enrich(ctx context.Context, ref model.FilingRef, report *model.StructuredReport, out *model.ReportOutput) {
	_ = p.timed("consensus", ref.FilingKey, func() error {
		if p.deps.Consensus != nil {
			out.Consensus = p.deps.Consensus.Get(ctx, ref.Subject)
		}
		return nil
	})
	out.Actuals = enrich.ExtractActuals(report)
	out.Surprise = enrich.BuildSurprise(out.Actuals, out.Consensus)
	_ = p.timed("reaction", ref.FilingKey, func() error {
		out.Reaction = p.enricher.Reaction(ctx, ref, report, out.Actuals, out.Consensus, out.Surprise)
		return nil
	})
	_ = p.timed("narrative", ref.FilingKey, func() error {
		out.Narrative = p.enricher.Narrative(ctx, ref, report)
		return nil
	})
}

func (p *Pipeline) render(rec *model.ReportOutput) string {
	var html string
	_ = p.timed("render", rec.Ref.FilingKey, func() (err error) {
		html, err = p.deps.Render(rec)
		return err
	})
	return html
}

// timed 记录阶段耗时，失败时带上阶段名
func (p *Pipeline) timed(stage, filingKey string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.deps.Metrics.ObserveStage(stage, time.Since(start))
	if err != nil {
		logger.Stage(stage, filingKey).Errorf("阶段失败: %v", err)
	}
	return err
}

func (p *Pipeline) result(status Status, subject, filingKey string, rec *model.ReportOutput) *Result {
	res := &Result{Status: status, Subject: subject, FilingKey: filingKey, Record: rec}
	if status != StatusGenerating && status != StatusError {
		res.ReportURL = fmt.Sprintf("%s/reports/%s/%s", p.cfg.URLPrefix, subject, filingKey)
		res.JSONURL = fmt.Sprintf("%s/api/reports/%s/%s/json", p.cfg.URLPrefix, subject, filingKey)
	}
	if rec != nil && rec.ErrorMessage != "" {
		res.Message = rec.ErrorMessage
	}
	return res
}

func (p *Pipeline) recordFailure(filingKey string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[filingKey] = err.Error()
}

func (p *Pipeline) clearFailure(filingKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, filingKey)
}

func (p *Pipeline) failure(filingKey string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.failures[filingKey]
	return msg, ok
}

func normalizeSubject(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
