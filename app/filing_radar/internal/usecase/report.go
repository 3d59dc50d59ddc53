package usecase

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-playground/validator/v10"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/filing"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/render"
)

var (
	// ErrReportNotFound 报告尚未生成
	ErrReportNotFound = errors.NotFound("REPORT_NOT_FOUND", "report not generated yet")
	// ErrFilingNotFound 文件不存在
	ErrFilingNotFound = errors.NotFound("FILING_NOT_FOUND", "filing not found")
)

// Generator 报告流水线
type Generator interface {
	Generate(ctx context.Context, subject, filingKey string, force bool) (*pipeline.Result, error)
	Start(ctx context.Context, subject, filingKey string, force bool) (*pipeline.Result, error)
	Status(ctx context.Context, filingKey string) (*pipeline.Poll, error)
	Latest(ctx context.Context, filingKey string) (*model.ReportOutput, error)
	Brief(ctx context.Context, subject string) (*model.ConsensusSnapshot, string)
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Subject   string `json:"subject" validate:"required,max=16"`
	FilingKey string `json:"filing_key" validate:"required,max=64,excludesall=/\\"`
	Force     bool   `json:"force"`

	// Wait 为 true 时同步等待生成结束
	Wait bool `json:"wait"`
}

// ReportUseCase 报告业务逻辑
type ReportUseCase struct {
	gen      Generator
	validate *validator.Validate
	log      *log.Helper
}

// NewReportUseCase 创建报告业务逻辑实例
func NewReportUseCase(gen Generator, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{gen: gen, validate: validator.New(), log: log.NewHelper(logger)}
}

// Generate 启动生成；完整缓存命中时直接返回 cached，Wait 时同步执行
func (uc *ReportUseCase) Generate(ctx context.Context, req *GenerateRequest) (*pipeline.Result, error) {
	if err := uc.validate.Struct(req); err != nil {
		return nil, errors.BadRequest("INVALID_REQUEST", err.Error())
	}
	if req.Wait {
		res, err := uc.gen.Generate(ctx, req.Subject, req.FilingKey, req.Force)
		if err != nil {
			uc.log.WithContext(ctx).Errorf("generate %s/%s: %v", req.Subject, req.FilingKey, err)
			return nil, FetchError(err)
		}
		return res, nil
	}
	res, err := uc.gen.Start(ctx, req.Subject, req.FilingKey, req.Force)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("start generation %s/%s: %v", req.Subject, req.FilingKey, err)
		return nil, errors.InternalServer("GENERATION_FAILED", err.Error())
	}
	return res, nil
}

// Status 轮询生成状态
func (uc *ReportUseCase) Status(ctx context.Context, filingKey string) (*pipeline.Poll, error) {
	poll, err := uc.gen.Status(ctx, filingKey)
	if err != nil {
		return nil, errors.InternalServer("STATUS_FAILED", err.Error())
	}
	return poll, nil
}

// Get 最新的可用报告；不存在、生成失败或标的不符时返回 ErrReportNotFound
func (uc *ReportUseCase) Get(ctx context.Context, subject, filingKey string) (*model.ReportOutput, error) {
	rec, err := uc.gen.Latest(ctx, filingKey)
	if err != nil {
		return nil, errors.InternalServer("STORAGE_FAILED", err.Error())
	}
	if rec == nil || rec.Report == nil || !strings.EqualFold(rec.Ref.Subject, strings.TrimSpace(subject)) {
		return nil, ErrReportNotFound
	}
	return rec, nil
}

// Page 渲染后的页面，尚未生成时返回占位页与 false
func (uc *ReportUseCase) Page(ctx context.Context, subject, filingKey string) (string, bool, error) {
	rec, err := uc.Get(ctx, subject, filingKey)
	if errors.IsNotFound(err) {
		return render.Placeholder(subject, filingKey), false, nil
	}
	if err != nil {
		return "", false, err
	}
	if rec.Rendered == "" {
		return render.Placeholder(subject, filingKey), false, nil
	}
	return rec.Rendered, true, nil
}

// Brief 只依据一致预期的简报
func (uc *ReportUseCase) Brief(ctx context.Context, subject string) (*model.ConsensusSnapshot, string, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, "", errors.BadRequest("INVALID_REQUEST", "subject is required")
	}
	snap, brief := uc.gen.Brief(ctx, subject)
	return snap, brief, nil
}

// FetchError 把同步生成的失败转换为对外错误
func FetchError(err error) error {
	var fe *filing.FetchError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, filing.ErrNotFound):
		return ErrFilingNotFound
	case !errors.As(err, &fe):
		return errors.InternalServer("GENERATION_FAILED", err.Error())
	default:
		e := errors.New(502, "FILING_FETCH_FAILED", err.Error())
		return e.WithMetadata(map[string]string{"retryable": strconv.FormatBool(filing.IsRetryable(err))})
	}
}
