package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// Fetcher 一致预期数据源
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) (*model.ConsensusSnapshot, error)
	Name() string
}

// Observer 统计缓存命中情况，result 取 hit / miss / error
type Observer interface {
	ObserveConsensus(result string)
}

// Service 带 TTL 缓存的一致预期服务，从不返回错误
type Service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	obs     Observer
	now     func() time.Time
}

// NewService 创建服务
func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, obs Observer) *Service {
	return &Service{fetcher: fetcher, cache: cache, ttl: ttl, obs: obs, now: time.Now}
}

// FromConfig 按配置组装数据源与缓存
func FromConfig(cfg config.ConsensusConfig, obs Observer) (*Service, error) {
	var fetcher Fetcher
	switch cfg.Provider {
	case "static", "":
		fetcher = NewStaticFetcher(cfg.Static)
	case "fmp":
		fetcher = NewFMPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	case "none":
		fetcher = NoneFetcher{}
	default:
		return nil, fmt.Errorf("unsupported consensus provider: %s", cfg.Provider)
	}

	var cache Cache
	switch cfg.Cache {
	case "memory", "":
		cache = NewMemoryCache(time.Now)
	case "redis":
		rc, err := NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		cache = rc
	default:
		return nil, fmt.Errorf("unsupported consensus cache: %s", cfg.Cache)
	}
	return NewService(fetcher, cache, cfg.TTL, obs), nil
}

// Normalize 统一标的写法
func Normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Get 先查缓存，未命中再拉取；失败时返回带 error 来源标记的空快照，且不缓存
func (s *Service) Get(ctx context.Context, ticker string) *model.ConsensusSnapshot {
	ticker = Normalize(ticker)
	if snap, ok := s.cache.Get(ctx, ticker); ok {
		s.observe("hit")
		return snap
	}
	return s.Refresh(ctx, ticker)
}

// Refresh 跳过缓存直接拉取，成功时写回缓存
func (s *Service) Refresh(ctx context.Context, ticker string) *model.ConsensusSnapshot {
	ticker = Normalize(ticker)
	snap, err := s.fetcher.Fetch(ctx, ticker)
	if err != nil || snap == nil {
		s.observe("error")
		logger.Log.WithField("stage", "consensus").WithField("ticker", ticker).
			Warnf("一致预期获取失败，降级为空快照: %v", err)
		return &model.ConsensusSnapshot{
			Ticker:    ticker,
			Source:    "error:" + s.fetcher.Name(),
			FetchedAt: s.now().UTC(),
		}
	}

	s.observe("miss")
	snap.Ticker = ticker
	if snap.Source == "" {
		snap.Source = s.fetcher.Name()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = s.now().UTC()
	}
	s.cache.Set(ctx, ticker, snap, s.ttl)
	return snap
}

func (s *Service) observe(result string) {
	if s.obs != nil {
		s.obs.ObserveConsensus(result)
	}
}
