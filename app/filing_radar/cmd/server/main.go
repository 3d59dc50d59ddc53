package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/server"
	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/service"
	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/usecase"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/consensus"
	frLogger "github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/metrics"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/storage"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "filing_radar"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/filing_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	helper := log.NewHelper(logger)

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}
	if err := frLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init pipeline logger: %v", err)
		_ = frLogger.InitLogger("info", "") // 降级处理
	}

	app, cleanup, err := initApp(cfg, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// initApp 手工组装依赖：存储 -> 流水线 -> 业务 -> 服务 -> HTTP
func initApp(cfg *config.Config, logger log.Logger) (*kratos.App, func(), error) {
	helper := log.NewHelper(logger)

	store, err := storage.NewStorage(cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	p, err := pipeline.Build(context.Background(), cfg, store, m)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	var warmer *consensus.Warmer
	if cfg.Consensus.RefreshCron != "" {
		warmer, err = consensus.NewWarmer(p.Consensus(), cfg.Consensus.RefreshCron, cfg.Consensus.Watchlist)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		warmer.Start()
		helper.Infof("consensus warmer scheduled: %s (%d tickers)", cfg.Consensus.RefreshCron, len(cfg.Consensus.Watchlist))
	}

	uc := usecase.NewReportUseCase(p, logger)
	svc := service.NewReportService(uc, logger)
	srv := server.NewHTTPServer(cfg.Server, svc, m, logger)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(logger),
		kratos.Server(srv),
	)

	cleanup := func() {
		helper.Info("Cleaning up filing_radar resources")
		if warmer != nil {
			warmer.Stop()
		}
		if err := store.Close(); err != nil {
			helper.Errorf("close storage: %v", err)
		}
	}
	return app, cleanup, nil
}
