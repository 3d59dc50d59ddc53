package extract

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// ErrReduce 归约调用失败或输出无法解析，本次生成失败
var ErrReduce = errors.New("reduce report failed")

// Options 抽取参数
type Options struct {
	MaxChunks     int
	Workers       int
	ExtractTokens int
	ReduceTokens  int
}

// Extractor 分块抽取（map）与单次归约（reduce）
type Extractor struct {
	gw   llm.Gateway
	opts Options
}

// New 创建 Extractor
func New(gw llm.Gateway, opts Options) *Extractor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Extractor{gw: gw, opts: opts}
}

// Run 对文本产物执行 map、合并与 reduce
func (e *Extractor) Run(ctx context.Context, ref model.FilingRef, art *model.FilingTextArtifact) (*model.StructuredReport, error) {
	bags := e.Map(ctx, ref, art.Chunks)
	merged := model.MergeFacts(bags...)
	logger.Stage("merge", ref.FilingKey).Infof("合并 %d 个分块结果，共 %d 条事实", len(bags), merged.ItemCount())
	return e.Reduce(ctx, ref, merged)
}

// Map 对前 MaxChunks 个分块并行抽取；单块失败只记录日志并丢弃，全部失败时返回空列表
func (e *Extractor) Map(ctx context.Context, ref model.FilingRef, chunks []string) []*model.FactsBag {
	if e.opts.MaxChunks > 0 && len(chunks) > e.opts.MaxChunks {
		chunks = chunks[:e.opts.MaxChunks]
	}
	log := logger.Stage("extract", ref.FilingKey)

	results := make([]*model.FactsBag, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := e.gw.Complete(gctx, extractPrompt(ref, chunk, i, len(chunks)), e.opts.ExtractTokens)
			if err != nil {
				log.Warnf("分块 %d 抽取失败: %v", i+1, err)
				return nil
			}
			var bag model.FactsBag
			if err := llm.DecodeJSON(out, &bag); err != nil {
				log.Warnf("分块 %d 输出无法解析，已丢弃: %v", i+1, err)
				return nil
			}
			results[i] = &bag
			return nil
		})
	}
	_ = g.Wait()

	bags := make([]*model.FactsBag, 0, len(results))
	for _, b := range results {
		if b != nil {
			bags = append(bags, b)
		}
	}
	if len(bags) == 0 && len(chunks) > 0 {
		log.Warnf("%d 个分块全部抽取失败，以空事实继续归约", len(chunks))
	}
	return bags
}

// Reduce 以合并后的事实请求完整报告
func (e *Extractor) Reduce(ctx context.Context, ref model.FilingRef, facts *model.FactsBag) (*model.StructuredReport, error) {
	if facts == nil {
		facts = &model.FactsBag{}
	}
	out, err := e.gw.Complete(ctx, reducePrompt(ref, facts), e.opts.ReduceTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReduce, err)
	}

	var report model.StructuredReport
	if err := llm.DecodeJSON(out, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReduce, err)
	}
	fillMeta(&report.Meta, ref)
	return &report, nil
}

// fillMeta 用文件引用补全模型遗漏的元信息
func fillMeta(meta *model.ReportMeta, ref model.FilingRef) {
	fill := func(dst *model.Text, v string) {
		if *dst == "" && v != "" {
			*dst = model.Text(v)
		}
	}
	fill(&meta.Ticker, ref.Subject)
	fill(&meta.Company, ref.Company)
	fill(&meta.FilingType, ref.DocType)
	fill(&meta.PeriodEnd, ref.PeriodEnd)
	fill(&meta.FiledDate, ref.FiledDate)
}
