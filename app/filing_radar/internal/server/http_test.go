package server

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/service"
	"github.com/iWorld-y/filing_radar/app/filing_radar/internal/usecase"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/consensus"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/filing"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/llm"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/metrics"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/storage"
)

func newTestServer(t *testing.T) *http.Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ACME"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ACME", "q2.htm"),
		[]byte("<p>Management's Discussion and Analysis</p><p>Revenue was $1.20 billion.</p>"), 0o644))

	store, err := storage.NewStorage(config.DBConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	eps := 1.40
	cfg.Consensus.Static = map[string]config.StaticEstimate{"ACME": {EPS: &eps}}
	cons, err := consensus.FromConfig(cfg.Consensus, nil)
	require.NoError(t, err)

	m := metrics.New()
	p := pipeline.New(cfg, pipeline.Deps{
		Store:     store,
		Source:    filing.NewDirSource(dir, 1<<20),
		Gateway:   llm.WithObserver(llm.NewMockGateway(), m),
		Consensus: cons,
		Metrics:   m,
	})

	logger := log.DefaultLogger
	svc := service.NewReportService(usecase.NewReportUseCase(p, logger), logger)
	return NewHTTPServer(config.ServerConfig{Timeout: 5 * time.Second}, svc, m, logger)
}

func do(t *testing.T, srv *http.Server, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(data)
}

func TestGenerateFlow(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, "GET", "/api/reports/q2/status", "")
	require.Equal(t, nethttp.StatusOK, code)

	code, body := do(t, srv, "POST", "/api/reports/generate", `{"subject":"ACME","filing_key":"q2"}`)
	require.Equal(t, nethttp.StatusAccepted, code, body)
	assert.Contains(t, body, `"status":"generating"`)

	require.Eventually(t, func() bool {
		_, body := do(t, srv, "GET", "/api/reports/q2/status", "")
		return strings.Contains(body, `"status":"done"`)
	}, 5*time.Second, 20*time.Millisecond)

	code, body = do(t, srv, "POST", "/api/reports/generate", `{"subject":"ACME","filing_key":"q2"}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	var reply service.GenerateReply
	require.NoError(t, json.Unmarshal([]byte(body), &reply))
	assert.Equal(t, "cached", reply.Status)
	assert.Equal(t, "/reports/ACME/q2", reply.ReportURL)

	code, body = do(t, srv, "GET", "/api/reports/ACME/q2/json", "")
	require.Equal(t, nethttp.StatusOK, code)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	assert.Len(t, report["sections"], 10)

	code, body = do(t, srv, "GET", "/reports/ACME/q2", "")
	assert.Equal(t, nethttp.StatusOK, code)
	assert.Contains(t, body, "<!DOCTYPE html>")
}

func TestGenerateWaitMissingFiling(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, "POST", "/api/reports/generate", `{"subject":"ACME","filing_key":"nope","wait":true}`)
	assert.Equal(t, nethttp.StatusNotFound, code)
	assert.Contains(t, body, "FILING_NOT_FOUND")
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, "POST", "/api/reports/generate", `{"subject":"ACME"}`)
	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.Contains(t, body, "INVALID_REQUEST")
}

func TestMissingReport(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, "GET", "/api/reports/ACME/q9/json", "")
	assert.Equal(t, nethttp.StatusNotFound, code)
	assert.Contains(t, body, "REPORT_NOT_FOUND")

	code, body = do(t, srv, "GET", "/reports/ACME/q9", "")
	assert.Equal(t, nethttp.StatusNotFound, code)
	assert.Contains(t, body, "/api/reports/generate")
}

func TestBriefAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, "GET", "/api/consensus/acme/brief", "")
	require.Equal(t, nethttp.StatusOK, code)
	var reply service.BriefReply
	require.NoError(t, json.Unmarshal([]byte(body), &reply))
	assert.Equal(t, "ACME", reply.Subject)
	assert.NotEmpty(t, reply.Brief)
	require.NotNil(t, reply.Consensus)
	assert.Equal(t, 1.40, *reply.Consensus.EPS)

	code, body = do(t, srv, "GET", "/metrics", "")
	assert.Equal(t, nethttp.StatusOK, code)
	assert.Contains(t, body, "filing_radar_llm_calls_total")
}
