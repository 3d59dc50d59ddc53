package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Filings     FilingsConfig     `yaml:"filings"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
}

// LLMConfig 生成式文本后端配置
type LLMConfig struct {
	Provider string `yaml:"provider" validate:"oneof=mock openai claude"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	// 各类调用的 max_tokens
	MaxTokens TokenBudget `yaml:"max_tokens"`
}

// TokenBudget 每类生成调用的输出上限
type TokenBudget struct {
	Extract   int `yaml:"extract" validate:"gt=0"`
	Reduce    int `yaml:"reduce" validate:"gt=0"`
	Repair    int `yaml:"repair" validate:"gt=0"`
	Reaction  int `yaml:"reaction" validate:"gt=0"`
	Narrative int `yaml:"narrative" validate:"gt=0"`
	Brief     int `yaml:"brief" validate:"gt=0"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps" validate:"gte=0"`
	RPM int `yaml:"rpm" validate:"gte=0"`

	// MapWorkers 单次生成内并行抽取的分块数
	MapWorkers int `yaml:"map_workers" validate:"gt=0"`
}

// PipelineConfig 文本准备与报告生成参数
type PipelineConfig struct {
	ChunkSize        int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	MaxChunks        int    `yaml:"max_chunks" validate:"gt=0"`
	MaxRelevantChars int    `yaml:"max_relevant_chars" validate:"gt=0"`
	WindowLines      int    `yaml:"window_lines" validate:"gt=0"`
	ParserThreshold  int    `yaml:"parser_threshold" validate:"gt=0"`
	SummaryMaxChars  int    `yaml:"summary_max_chars" validate:"gt=0"`
	GuidanceExcerpt  int    `yaml:"guidance_excerpt" validate:"gt=0"`
	URLPrefix        string `yaml:"url_prefix"`
}

// ConsensusConfig 分析师一致预期配置
type ConsensusConfig struct {
	Provider string                    `yaml:"provider" validate:"oneof=static fmp none"`
	BaseURL  string                    `yaml:"base_url"`
	APIKey   string                    `yaml:"api_key"`
	Timeout  time.Duration             `yaml:"timeout"`
	TTL      time.Duration             `yaml:"ttl" validate:"gt=0"`
	Cache    string                    `yaml:"cache" validate:"oneof=memory redis"`
	RedisURL string                    `yaml:"redis_url"`
	Static   map[string]StaticEstimate `yaml:"static"`

	// RefreshCron 非空时按计划预热 Watchlist 中标的的预期
	RefreshCron string   `yaml:"refresh_cron"`
	Watchlist   []string `yaml:"watchlist"`
}

// StaticEstimate 静态配置的预期值，用于离线运行
type StaticEstimate struct {
	EPS      *float64 `yaml:"eps"`
	Revenue  *float64 `yaml:"revenue"`
	EBITDA   *float64 `yaml:"ebitda"`
	Currency string   `yaml:"currency"`
	Period   string   `yaml:"period"`
}

// FilingsConfig 文件来源配置
type FilingsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes" validate:"gt=0"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default 返回带全部默认值的配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "mock",
			MaxTokens: TokenBudget{
				Extract:   1500,
				Reduce:    6000,
				Repair:    6000,
				Reaction:  800,
				Narrative: 800,
				Brief:     400,
			},
		},
		Concurrency: ConcurrencyConfig{QPS: 2, RPM: 60, MapWorkers: 3},
		Pipeline: PipelineConfig{
			ChunkSize:        12000,
			ChunkOverlap:     800,
			MaxChunks:        6,
			MaxRelevantChars: 60000,
			WindowLines:      80,
			ParserThreshold:  2 << 20,
			SummaryMaxChars:  1500,
			GuidanceExcerpt:  1200,
			URLPrefix:        "",
		},
		Consensus: ConsensusConfig{
			Provider: "static",
			Timeout:  15 * time.Second,
			TTL:      24 * time.Hour,
			Cache:    "memory",
		},
		Filings: FilingsConfig{Dir: "filings", MaxBytes: 25 << 20},
		DB:      DBConfig{Driver: "sqlite", DSN: "file:filing_radar.db"},
		Log:     LogConfig{Level: "info"},
		Server:  ServerConfig{Addr: ":8000", Timeout: 30 * time.Second},
	}
}

// LoadConfig 从指定路径加载配置，未设置的字段沿用默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PostgresDSN 根据分项配置拼接连接串
func (c DBConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}
