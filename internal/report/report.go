// Package report renders a risk result as a downloadable document: a paginated
// plain-text report or an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/types"
)

// Format names a document format
type Format string

const (
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

// HoldingsPerPage is the number of holdings rows per text page
const HoldingsPerPage = 15

// ComponentRow is one line of the score breakdown
type ComponentRow struct {
	Label  string
	Weight int // percent
	Score  int
}

// Document is a renderable report
type Document struct {
	ID          string
	Subject     string // EIP-55 checksummed when the subject is an address
	GeneratedAt time.Time
	AnalyzedAt  time.Time
	Cached      bool
	Result      *types.RiskResult
}

// New builds a document for result
func New(result *types.RiskResult, cached bool, generatedAt time.Time) *Document {
	subject := result.Subject
	if common.IsHexAddress(subject) {
		subject = common.HexToAddress(subject).Hex()
	}
	return &Document{
		ID:          "SCOR-" + strings.ToUpper(uuid.New().String()[:8]),
		Subject:     subject,
		GeneratedAt: generatedAt.UTC(),
		AnalyzedAt:  result.ComputedAt.UTC(),
		Cached:      cached,
		Result:      result,
	}
}

// Components returns the five-component breakdown in display order
func (d *Document) Components() []ComponentRow {
	b := d.Result.Breakdown
	return []ComponentRow{
		{Label: "Treasury Health", Weight: 30, Score: b.Treasury},
		{Label: "Activity Score", Weight: 25, Score: b.Activity},
		{Label: "Diversification", Weight: 20, Score: b.Diversification},
		{Label: "Maturity Score", Weight: 15, Score: b.Maturity},
		{Label: "Transaction History", Weight: 10, Score: b.History},
	}
}

// Banner is the approval line shown under the score
func (d *Document) Banner() string {
	return strings.ToUpper(d.Result.CreditDecision.Label)
}

// Renderer writes a document in one format
type Renderer interface {
	Render(w io.Writer, doc *Document) error
	ContentType() string
	Extension() string
}

// RendererFor returns the renderer for a format name. Empty means text.
func RendererFor(format string) (Renderer, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case "", FormatText:
		return TextRenderer{}, nil
	case FormatXLSX:
		return XLSXRenderer{}, nil
	default:
		return nil, errors.NewInvalidParameterError("format", fmt.Sprintf("unsupported format %q (want text or xlsx)", format))
	}
}

// Filename is the suggested download name for a document
func Filename(doc *Document, r Renderer) string {
	subject := strings.ToLower(doc.Subject)
	if len(subject) > 10 {
		subject = subject[:10]
	}
	return fmt.Sprintf("scor-report-%s-%s.%s", subject, doc.GeneratedAt.Format("20060102"), r.Extension())
}
