package report

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx/v2"
)

// Sheet names of the workbook
const (
	SummarySheet  = "Summary"
	HoldingsSheet = "Holdings"
)

// HoldingsHeader is the first row of the holdings sheet
var HoldingsHeader = []string{"Symbol", "Contract", "Amount", "Price USD", "Value USD", "Portfolio %", "Stable", "Risk"}

// XLSXRenderer writes the report as a two-sheet workbook. Numbers are stored
// as numeric cells so they read back exactly.
type XLSXRenderer struct{}

// ContentType implements Renderer
func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer
func (XLSXRenderer) Extension() string { return "xlsx" }

// Render implements Renderer
func (XLSXRenderer) Render(w io.Writer, doc *Document) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return fmt.Errorf("xlsx: add summary sheet: %w", err)
	}
	writeSummary(summary, doc)

	sheet, err := f.AddSheet(HoldingsSheet)
	if err != nil {
		return fmt.Errorf("xlsx: add holdings sheet: %w", err)
	}
	writeHoldings(sheet, doc)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return nil
}

func writeSummary(sheet *xlsx.Sheet, doc *Document) {
	r := doc.Result

	str := func(label, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(value)
	}
	num := func(label string, value float64) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetFloat(value)
	}
	integer := func(label string, value int) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetInt(value)
	}

	str("Report ID", doc.ID)
	str("Address", doc.Subject)
	str("Generated", doc.GeneratedAt.Format(time.RFC3339))
	str("Analysis Date", doc.AnalyzedAt.Format(time.RFC3339))
	integer("Risk Score", r.FinalScore)
	str("Risk Tier", string(r.RiskTier))
	str("Decision", doc.Banner())
	str("Approved", fmt.Sprintf("%t", r.CreditDecision.Approved))
	num("Max Advance Ratio", r.CreditDecision.MaxAdvanceRatio)
	num("Total Treasury Value USD", r.PortfolioValueUSD)
	num("Native Value USD", r.NativeValueUSD)
	num("Token Value USD", r.TokenValueUSD)
	num("Native Balance", r.NativeBalance)
	integer("Recent Transactions (30d)", int(r.Activity.RecentTransactions))
	integer("Total Transactions", int(r.Activity.TotalTransactions))
	str("Wallet Since", r.Activity.WalletSince)
	str("Price Source", string(r.PriceSource))
	for _, c := range doc.Components() {
		integer(fmt.Sprintf("%s (%d%%)", c.Label, c.Weight), c.Score)
	}
}

func writeHoldings(sheet *xlsx.Sheet, doc *Document) {
	header := sheet.AddRow()
	for _, h := range HoldingsHeader {
		header.AddCell().SetString(h)
	}

	for _, h := range doc.Result.Holdings {
		row := sheet.AddRow()
		row.AddCell().SetString(h.Symbol)
		row.AddCell().SetString(h.ContractAddress)
		row.AddCell().SetFloat(h.Amount)
		row.AddCell().SetFloat(h.PriceUSD)
		row.AddCell().SetFloat(h.ValueUSD)
		row.AddCell().SetInt(h.PercentageOfPortfolio)
		row.AddCell().SetString(fmt.Sprintf("%t", h.IsStable))
		row.AddCell().SetString(string(h.RiskBucket))
	}
}
