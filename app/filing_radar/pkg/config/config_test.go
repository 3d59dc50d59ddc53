package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadConfig_OverridesKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  model: gpt-4o-mini
  max_tokens:
    reduce: 8000
consensus:
  provider: static
  ttl: 1h
  static:
    ACME:
      eps: 1.5
      currency: USD
db:
  driver: postgres
  host: localhost
  port: 5432
  user: radar
  password: secret
  name: filings
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 8000, cfg.LLM.MaxTokens.Reduce)
	assert.Equal(t, 1500, cfg.LLM.MaxTokens.Extract)
	assert.Equal(t, time.Hour, cfg.Consensus.TTL)
	assert.Equal(t, 15*time.Second, cfg.Consensus.Timeout)
	require.NotNil(t, cfg.Consensus.Static["ACME"].EPS)
	assert.Equal(t, 1.5, *cfg.Consensus.Static["ACME"].EPS)
	assert.Nil(t, cfg.Consensus.Static["ACME"].Revenue)
	assert.Equal(t, 12000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, "host=localhost port=5432 user=radar password=secret dbname=filings sslmode=disable", cfg.DB.PostgresDSN())
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown provider": "llm:\n  provider: gemini\n",
		"overlap too big":  "pipeline:\n  chunk_size: 100\n  chunk_overlap: 100\n",
		"bad cache":        "consensus:\n  cache: disk\n",
		"bad yaml":         "llm: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN_PrefersExplicit(t *testing.T) {
	assert.Equal(t, "postgres://x", DBConfig{DSN: "postgres://x", Host: "h"}.PostgresDSN())
}
