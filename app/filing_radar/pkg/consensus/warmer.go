package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
)

// Warmer 按计划刷新关注列表中标的的一致预期缓存
type Warmer struct {
	cron      *cron.Cron
	svc       *Service
	watchlist []string
}

// NewWarmer 创建预热任务，expr 为标准五段 cron 表达式
func NewWarmer(svc *Service, expr string, watchlist []string) (*Warmer, error) {
	w := &Warmer{cron: cron.New(), svc: svc, watchlist: watchlist}
	if _, err := w.cron.AddFunc(expr, w.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh cron %q: %w", expr, err)
	}
	return w, nil
}

// RunOnce 刷新一遍关注列表
func (w *Warmer) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	failed := 0
	for _, ticker := range w.watchlist {
		if snap := w.svc.Refresh(ctx, ticker); snap.Empty() {
			failed++
		}
	}
	logger.Log.WithField("stage", "consensus").
		Infof("一致预期预热完成: %d 个标的, %d 个无数据", len(w.watchlist), failed)
}

// Start 启动调度
func (w *Warmer) Start() { w.cron.Start() }

// Stop 停止调度并等待正在运行的任务
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}
