package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/filing"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/pipeline"
)

// mockGenerator 模拟流水线
type mockGenerator struct {
	latest   *model.ReportOutput
	genErr   error
	started  int
	generate int
}

func (m *mockGenerator) Generate(ctx context.Context, subject, filingKey string, force bool) (*pipeline.Result, error) {
	m.generate++
	if m.genErr != nil {
		return nil, m.genErr
	}
	return &pipeline.Result{Status: pipeline.StatusGenerated}, nil
}

func (m *mockGenerator) Start(ctx context.Context, subject, filingKey string, force bool) (*pipeline.Result, error) {
	m.started++
	return &pipeline.Result{Status: pipeline.StatusGenerating}, nil
}

func (m *mockGenerator) Status(ctx context.Context, filingKey string) (*pipeline.Poll, error) {
	return &pipeline.Poll{Status: pipeline.PollNotStarted}, nil
}

func (m *mockGenerator) Latest(ctx context.Context, filingKey string) (*model.ReportOutput, error) {
	return m.latest, nil
}

func (m *mockGenerator) Brief(ctx context.Context, subject string) (*model.ConsensusSnapshot, string) {
	return &model.ConsensusSnapshot{Ticker: subject}, "brief"
}

func TestReportUseCase_GenerateValidates(t *testing.T) {
	gen := &mockGenerator{}
	uc := NewReportUseCase(gen, log.DefaultLogger)

	_, err := uc.Generate(context.Background(), &GenerateRequest{Subject: "ACME", FilingKey: "../etc"})
	assert.True(t, errors.IsBadRequest(err))
	_, err = uc.Generate(context.Background(), &GenerateRequest{FilingKey: "k1"})
	assert.True(t, errors.IsBadRequest(err))
	assert.Zero(t, gen.started)

	res, err := uc.Generate(context.Background(), &GenerateRequest{Subject: "ACME", FilingKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusGenerating, res.Status)
	assert.Equal(t, 1, gen.started)

	res, err = uc.Generate(context.Background(), &GenerateRequest{Subject: "ACME", FilingKey: "k1", Wait: true})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusGenerated, res.Status)
	assert.Equal(t, 1, gen.generate)
}

func TestReportUseCase_GetChecksSubject(t *testing.T) {
	gen := &mockGenerator{latest: &model.ReportOutput{
		Ref:      model.FilingRef{Subject: "ACME", FilingKey: "k1"},
		Report:   &model.StructuredReport{},
		Rendered: "<html></html>",
	}}
	uc := NewReportUseCase(gen, log.DefaultLogger)

	rec, err := uc.Get(context.Background(), "acme", "k1")
	require.NoError(t, err)
	assert.NotNil(t, rec)

	_, err = uc.Get(context.Background(), "OTHER", "k1")
	assert.True(t, errors.IsNotFound(err))

	page, ok, err := uc.Page(context.Background(), "ACME", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html></html>", page)

	gen.latest = nil
	page, ok, err = uc.Page(context.Background(), "ACME", "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, page, "k1")
}

func TestFetchError(t *testing.T) {
	assert.Nil(t, FetchError(nil))
	assert.True(t, errors.IsNotFound(FetchError(fmt.Errorf("wrap: %w", filing.ErrNotFound))))

	err := FetchError(&filing.FetchError{Op: "read", Retryable: true, Err: fmt.Errorf("reset")})
	e := errors.FromError(err)
	assert.Equal(t, int32(502), e.Code)
	assert.Equal(t, "FILING_FETCH_FAILED", e.Reason)
	assert.Equal(t, "true", e.Metadata["retryable"])

	assert.True(t, errors.IsInternalServer(FetchError(fmt.Errorf("disk full"))))
}
