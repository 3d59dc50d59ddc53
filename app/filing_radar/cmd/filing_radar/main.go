package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/metrics"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/storage"
)

func main() {
	var (
		confPath = flag.String("conf", "app/filing_radar/configs/config.yaml", "config path")
		subject  = flag.String("subject", "", "ticker of the filing")
		key      = flag.String("filing", "", "filing key (accession number)")
		force    = flag.Bool("force", false, "ignore cached results")
		out      = flag.String("out", "output", "directory for index.html and report.json")
		brief    = flag.Bool("brief", false, "print the consensus brief for -subject and exit")
	)
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动财报雷达...")

	if *subject == "" || (*key == "" && !*brief) {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	// 3. 初始化数据库
	store, err := storage.NewStorage(cfg.DB)
	if err != nil {
		logger.Log.Fatalf("无法连接数据库: %v", err)
	}
	defer store.Close()

	// 4. 组装流水线
	p, err := pipeline.Build(ctx, cfg, store, metrics.New())
	if err != nil {
		logger.Log.Fatalf("流水线初始化失败: %v", err)
	}

	if *brief {
		snap, text := p.Brief(ctx, *subject)
		logger.Log.Infof("一致预期来源: %s", snap.Source)
		fmt.Println(text)
		return
	}

	// 5. 同步生成
	res, err := p.Generate(ctx, *subject, *key, *force)
	if err != nil {
		logger.Log.Fatalf("生成失败: %v", err)
	}
	if res.Status == pipeline.StatusError {
		logger.Log.Fatalf("生成失败: %s", res.Message)
	}
	logger.Log.Infof("生成结束: %s", res.Status)

	if err := writeOutputs(*out, res); err != nil {
		logger.Log.Fatalf("写入结果失败: %v", err)
	}
	logger.Log.Infof("✅ 财报报告生成完毕: %s", filepath.Join(*out, "index.html"))
}

func writeOutputs(dir string, res *pipeline.Result) error {
	if res.Record == nil || res.Record.Report == nil {
		return fmt.Errorf("no report for %s", res.FilingKey)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(res.Record.Rendered), 0o644); err != nil {
		return err
	}
	data, err := json.MarshalIndent(res.Record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644)
}
