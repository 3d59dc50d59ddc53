package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// ErrNoEstimates 数据源没有该标的的预期
var ErrNoEstimates = errors.New("no consensus estimates")

// StaticFetcher 从配置读取预期值，用于离线运行
type StaticFetcher struct {
	estimates map[string]config.StaticEstimate
}

// NewStaticFetcher 创建静态数据源
func NewStaticFetcher(estimates map[string]config.StaticEstimate) *StaticFetcher {
	norm := make(map[string]config.StaticEstimate, len(estimates))
	for k, v := range estimates {
		norm[Normalize(k)] = v
	}
	return &StaticFetcher{estimates: norm}
}

// Name 实现 Fetcher
func (f *StaticFetcher) Name() string { return "static" }

// Fetch 实现 Fetcher
func (f *StaticFetcher) Fetch(_ context.Context, ticker string) (*model.ConsensusSnapshot, error) {
	est, ok := f.estimates[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEstimates, ticker)
	}
	return &model.ConsensusSnapshot{
		EPS:      est.EPS,
		Revenue:  est.Revenue,
		EBITDA:   est.EBITDA,
		Currency: est.Currency,
		Period:   est.Period,
	}, nil
}

// NoneFetcher 不提供预期数据
type NoneFetcher struct{}

// Name 实现 Fetcher
func (NoneFetcher) Name() string { return "none" }

// Fetch 实现 Fetcher
func (NoneFetcher) Fetch(context.Context, string) (*model.ConsensusSnapshot, error) {
	return nil, ErrNoEstimates
}

// FMPClient Financial Modeling Prep 分析师预期接口
type FMPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFMPClient 创建 FMP 客户端
func NewFMPClient(baseURL, apiKey string, timeout time.Duration) *FMPClient {
	if baseURL == "" {
		baseURL = "https://financialmodelingprep.com/stable"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FMPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type fmpEstimate struct {
	Symbol             string   `json:"symbol"`
	Date               string   `json:"date"`
	EstimatedEpsAvg    *float64 `json:"estimatedEpsAvg"`
	EstimatedRevenue   *float64 `json:"estimatedRevenueAvg"`
	EstimatedEbitdaAvg *float64 `json:"estimatedEbitdaAvg"`
}

// Name 实现 Fetcher
func (c *FMPClient) Name() string { return "fmp" }

// Fetch 取最近一期的平均预期
func (c *FMPClient) Fetch(ctx context.Context, ticker string) (*model.ConsensusSnapshot, error) {
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("period", "quarter")
	q.Set("limit", "1")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analyst-estimates?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fmp api error: status %d, body: %s", resp.StatusCode, body)
	}

	var rows []fmpEstimate
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEstimates, ticker)
	}

	r := rows[0]
	return &model.ConsensusSnapshot{
		EPS:      r.EstimatedEpsAvg,
		Revenue:  r.EstimatedRevenue,
		EBITDA:   r.EstimatedEbitdaAvg,
		Currency: "USD",
		Period:   r.Date,
	}, nil
}
