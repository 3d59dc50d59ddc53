package service

import (
	"context"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/usecase"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
)

// GenerateReply 生成请求的返回
type GenerateReply struct {
	Status    string `json:"status"`
	ReportURL string `json:"report_url,omitempty"`
	JSONURL   string `json:"json_url,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StatusReply 状态轮询的返回
type StatusReply struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BriefReply 一致预期简报
type BriefReply struct {
	Subject   string                   `json:"subject"`
	Brief     string                   `json:"brief"`
	Consensus *model.ConsensusSnapshot `json:"consensus"`
}

// ReportService 报告相关的 HTTP 处理
type ReportService struct {
	uc  *usecase.ReportUseCase
	log *log.Helper
}

// NewReportService 创建服务
func NewReportService(uc *usecase.ReportUseCase, logger log.Logger) *ReportService {
	return &ReportService{uc: uc, log: log.NewHelper(logger)}
}

// Register 注册路由
func (s *ReportService) Register(r *http.Router) {
	r.POST("/api/reports/generate", s.Generate)
	r.GET("/api/reports/{filing_key}/status", s.Status)
	r.GET("/api/reports/{subject}/{filing_key}/json", s.JSON)
	r.GET("/reports/{subject}/{filing_key}", s.Page)
	r.GET("/api/consensus/{subject}/brief", s.Brief)
}

// Generate POST /api/reports/generate
func (s *ReportService) Generate(ctx http.Context) error {
	var req usecase.GenerateRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.BadRequest("INVALID_REQUEST", err.Error())
	}
	http.SetOperation(ctx, "/filing_radar.Report/Generate")
	h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
		return s.uc.Generate(c, in.(*usecase.GenerateRequest))
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}

	res := out.(*pipeline.Result)
	s.log.WithContext(ctx).Infof("generate %s/%s: %s", req.Subject, req.FilingKey, res.Status)
	code := nethttp.StatusOK
	if res.Status == pipeline.StatusGenerating {
		code = nethttp.StatusAccepted
	}
	return ctx.JSON(code, &GenerateReply{
		Status:    string(res.Status),
		ReportURL: res.ReportURL,
		JSONURL:   res.JSONURL,
		Message:   res.Message,
	})
}

// Status GET /api/reports/{filing_key}/status
func (s *ReportService) Status(ctx http.Context) error {
	key := ctx.Vars().Get("filing_key")
	http.SetOperation(ctx, "/filing_radar.Report/Status")
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return s.uc.Status(c, key)
	})
	out, err := h(ctx, key)
	if err != nil {
		return err
	}
	poll := out.(*pipeline.Poll)
	return ctx.JSON(nethttp.StatusOK, &StatusReply{Status: string(poll.Status), Message: poll.Message})
}

// JSON GET /api/reports/{subject}/{filing_key}/json
func (s *ReportService) JSON(ctx http.Context) error {
	vars := ctx.Vars()
	rec, err := s.uc.Get(ctx, vars.Get("subject"), vars.Get("filing_key"))
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, rec.Report)
}

// Page GET /reports/{subject}/{filing_key}
func (s *ReportService) Page(ctx http.Context) error {
	vars := ctx.Vars()
	page, ok, err := s.uc.Page(ctx, vars.Get("subject"), vars.Get("filing_key"))
	if err != nil {
		return err
	}
	code := nethttp.StatusOK
	if !ok {
		code = nethttp.StatusNotFound
	}
	return ctx.Blob(code, "text/html; charset=utf-8", []byte(page))
}

// Brief GET /api/consensus/{subject}/brief
func (s *ReportService) Brief(ctx http.Context) error {
	subject := ctx.Vars().Get("subject")
	snap, brief, err := s.uc.Brief(ctx, subject)
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, &BriefReply{Subject: snap.Ticker, Brief: brief, Consensus: snap})
}
