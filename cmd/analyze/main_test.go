package main

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/report"
	"github.com/scor-analyzer/internal/service"
	"github.com/scor-analyzer/internal/types"
)

func TestReportError_HidesDetailUnlessVerbose(t *testing.T) {
	err := errors.NewUpstreamUnavailableError("etherscan", stderrors.New("dial tcp 10.0.0.7:443: connection refused"))

	var quiet bytes.Buffer
	reportError(&quiet, err, false)
	assert.Equal(t, "Error: "+errors.MessageUpstreamUnavailable+"\n", quiet.String())

	var loud bytes.Buffer
	reportError(&loud, err, true)
	assert.Contains(t, loud.String(), errors.MessageUpstreamUnavailable)
	assert.Contains(t, loud.String(), "connection refused")
}

func TestWrite(t *testing.T) {
	analysis := &service.Analysis{RiskResult: types.RiskResult{
		Subject:    "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		FinalScore: 42,
		RiskTier:   types.TierMedium,
	}}
	doc := report.New(&analysis.RiskResult, false, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	var raw bytes.Buffer
	require.NoError(t, write(&raw, nil, analysis, doc))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Equal(t, float64(42), decoded["finalScore"])

	var rendered bytes.Buffer
	require.NoError(t, write(&rendered, subjectRenderer{}, analysis, doc))
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", rendered.String())
}

type subjectRenderer struct{}

func (subjectRenderer) Render(w io.Writer, doc *report.Document) error {
	_, err := io.WriteString(w, doc.Subject)
	return err
}

func (subjectRenderer) ContentType() string { return "text/plain" }

func (subjectRenderer) Extension() string { return "txt" }
