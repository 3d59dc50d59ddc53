package server

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/service"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/metrics"
)

// NewHTTPServer 创建 HTTP 服务并注册报告路由与 /metrics
func NewHTTPServer(c config.ServerConfig, s *service.ReportService, m *metrics.Metrics, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Timeout))
	}

	srv := http.NewServer(opts...)
	s.Register(srv.Route("/"))
	srv.Handle("/metrics", m.Handler())
	return srv
}
