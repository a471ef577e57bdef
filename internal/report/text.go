package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/scor-analyzer/internal/types"
)

type textPage struct {
	Doc      *Document
	Number   int
	Total    int
	Holdings []types.HoldingView
}

var textFuncs = template.FuncMap{
	"usd":     formatUSD,
	"amount":  formatAmount,
	"mulf":    func(a, b float64) float64 { return a * b },
	"bar":     scoreBar,
	"pad":     func(width int, s string) string { return fmt.Sprintf("%-*s", width, s) },
	"lpad":    func(width int, s string) string { return fmt.Sprintf("%*s", width, s) },
	"itoa":    strconv.Itoa,
	"timefmt": func(d *Document) string { return d.AnalyzedAt.Format("2006-01-02 15:04 UTC") },
}

var pageTemplate = template.Must(template.New("page").Funcs(textFuncs).Parse(
	`scor | DAO Risk Assessment Report
Report ID: {{.Doc.ID}}    Generated: {{.Doc.GeneratedAt.Format "2006-01-02 15:04 UTC"}}
{{- if eq .Number 1}}
Analysis Date: {{timefmt .Doc}}{{if .Doc.Cached}} (cached){{end}}    Prices: {{.Doc.Result.PriceSource}}

Address: {{.Doc.Subject}}
Risk Score: {{.Doc.Result.FinalScore}}/100    {{.Doc.Result.RiskTier}} Risk

*** {{.Doc.Banner}} ***
{{.Doc.Result.CreditDecision.Rationale}} (max advance {{printf "%.0f" (mulf .Doc.Result.CreditDecision.MaxAdvanceRatio 100)}}%)

TREASURY OVERVIEW
  Total Treasury Value:      {{usd .Doc.Result.PortfolioValueUSD}} ({{amount .Doc.Result.NativeBalance}} ETH)
  Native Value:              {{usd .Doc.Result.NativeValueUSD}}
  Token Value:               {{usd .Doc.Result.TokenValueUSD}}
  Recent Activity (30d):     {{.Doc.Result.Activity.RecentTransactions}} transactions
  Total Transaction History: {{.Doc.Result.Activity.TotalTransactions}} transactions
  Wallet Age:                Since {{if .Doc.Result.Activity.WalletSince}}{{.Doc.Result.Activity.WalletSince}}{{else}}Unknown{{end}}

RISK ANALYSIS BREAKDOWN
{{- range .Doc.Components}}
  {{pad 28 (printf "%s (%d%%)" .Label .Weight)}} {{bar .Score}} {{lpad 3 (itoa .Score)}}/100
{{- end}}
{{- end}}

HOLDINGS{{if gt .Total 1}} ({{.Number}}/{{.Total}}){{end}}
{{- if .Holdings}}
  {{pad 8 "Symbol"}} {{lpad 18 "Amount"}} {{lpad 16 "Value"}} {{lpad 5 "%"}}  Risk
{{- range .Holdings}}
  {{pad 8 .Symbol}} {{lpad 18 (amount .Amount)}} {{lpad 16 (usd .ValueUSD)}} {{lpad 5 (itoa .PercentageOfPortfolio)}}  {{.RiskBucket}}
{{- end}}
{{- else}}
  No priced holdings
{{- end}}

CONFIDENTIAL    Page {{.Number}} of {{.Total}}
`))

// TextRenderer writes the report as plain-text pages separated by form feeds
type TextRenderer struct{}

// ContentType implements Renderer
func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Extension implements Renderer
func (TextRenderer) Extension() string { return "txt" }

// Render implements Renderer
func (TextRenderer) Render(w io.Writer, doc *Document) error {
	pages := paginate(doc)
	for i, page := range pages {
		if i > 0 {
			if _, err := io.WriteString(w, "\f"); err != nil {
				return err
			}
		}
		if err := pageTemplate.Execute(w, page); err != nil {
			return fmt.Errorf("failed to render page %d: %w", page.Number, err)
		}
	}
	return nil
}

func paginate(doc *Document) []textPage {
	holdings := doc.Result.Holdings
	total := (len(holdings) + HoldingsPerPage - 1) / HoldingsPerPage
	if total == 0 {
		total = 1
	}

	pages := make([]textPage, 0, total)
	for n := 0; n < total; n++ {
		lo := n * HoldingsPerPage
		hi := min(lo+HoldingsPerPage, len(holdings))
		page := textPage{Doc: doc, Number: n + 1, Total: total}
		if lo < hi {
			page.Holdings = holdings[lo:hi]
		}
		pages = append(pages, page)
	}
	return pages
}

func scoreBar(score int) string {
	const width = 20
	filled := max(0, min(width, score*width/100))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatUSD renders a dollar amount with thousands separators and cents
func formatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// formatAmount keeps up to 4 decimals and drops trailing zeros
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
