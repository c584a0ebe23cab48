/*
Package report renders a negotiated proposal as an XLSX workbook.

LAYOUT (sheet "Proposta"):
  A1          title
  A2:B5       property, unit, area, generation date
  A7:D13      table plan vs negotiated plan, one row per plan line
  A15:C21     negotiation summary
  A23:B25     discount suggestion, when the session has one

Amounts are written as numbers with a thousands format so the sheet stays
usable for further calculation.
*/
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/money"
	"github.com/warp/proposal-engine/plan"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Proposta"

// Built-in excelize number formats.
const (
	numFmtThousands = 4  // #,##0.00
	numFmtPercent   = 10 // 0.00%
)

// Export is everything a proposal sheet shows.
type Export struct {
	Property    catalog.Property
	Unit        catalog.Unit
	Proposal    plan.PaymentPlan
	Suggestion  *advisor.Suggestion
	GeneratedAt time.Time
}

// Filename suggests a download name for the export.
func (e Export) Filename() string {
	return fmt.Sprintf("proposta-%s-%s.xlsx", e.Property.ID, e.Unit.ID)
}

type styles struct {
	bold    int
	money   int
	percent int
}

// WriteProposal writes the workbook for e to w.
func WriteProposal(w io.Writer, e Export) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return err
	}

	sw := &sheetWriter{f: f, st: st}
	sw.header(e)
	sw.planRows(e.Unit.TablePlan, e.Proposal)
	sw.summary(plan.Summarize(e.Unit.TablePlan, e.Proposal, e.Unit.Area))
	if e.Suggestion != nil {
		sw.suggestion(*e.Suggestion)
	}
	if sw.err != nil {
		return fmt.Errorf("write sheet: %w", sw.err)
	}

	if err := f.SetColWidth(SheetName, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "C", 20); err != nil {
		return err
	}
	return f.Write(w)
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, err
	}
	if st.money, err = f.NewStyle(&excelize.Style{NumFmt: numFmtThousands}); err != nil {
		return st, err
	}
	if st.percent, err = f.NewStyle(&excelize.Style{NumFmt: numFmtPercent}); err != nil {
		return st, err
	}
	return st, nil
}

// sheetWriter keeps the first error so the layout code reads top to bottom.
type sheetWriter struct {
	f   *excelize.File
	st  styles
	err error
}

func (s *sheetWriter) set(cell string, v any) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellValue(SheetName, cell, v)
}

func (s *sheetWriter) style(cell string, id int) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellStyle(SheetName, cell, cell, id)
}

func (s *sheetWriter) money(cell string, v decimal.Decimal) {
	s.set(cell, v.Round(2).InexactFloat64())
	s.style(cell, s.st.money)
}

func (s *sheetWriter) percent(cell string, v decimal.Decimal) {
	s.set(cell, v.Div(decimal.NewFromInt(100)).Round(4).InexactFloat64())
	s.style(cell, s.st.percent)
}

func (s *sheetWriter) header(e Export) {
	s.set("A1", "Proposta de Pagamento")
	s.style("A1", s.st.bold)

	s.set("A2", "Empreendimento")
	s.set("B2", e.Property.Name)
	s.set("A3", "Unidade")
	s.set("B3", e.Unit.ID)
	s.set("A4", "Área")
	s.set("B4", money.FormatArea(e.Unit.Area))
	s.set("A5", "Gerado em")
	s.set("B5", e.GeneratedAt.Format("02/01/2006 15:04"))
}

func (s *sheetWriter) planRows(table, proposal plan.PaymentPlan) {
	for col, title := range []string{"Item", "Valor Tabela", "Valor Negociado", "Quantidade"} {
		cell := fmt.Sprintf("%c7", 'A'+col)
		s.set(cell, title)
		s.style(cell, s.st.bold)
	}

	rows := []struct {
		label    string
		table    decimal.Decimal
		proposal decimal.Decimal
		count    int
	}{
		{"Valor Total", table.Total, proposal.Total, 0},
		{"Ato", table.DownPayment, proposal.DownPayment, 0},
		{"Parcelas", table.Installments.Value, proposal.Installments.Value, table.Installments.Count},
		{"Anual", table.Annual.Value, proposal.Annual.Value, table.Annual.Count},
		{"Única", table.Balloon, proposal.Balloon, 0},
		{"Financiado", table.Financed, proposal.Financed, 0},
	}
	for i, r := range rows {
		row := 8 + i
		s.set(fmt.Sprintf("A%d", row), r.label)
		s.money(fmt.Sprintf("B%d", row), r.table)
		s.money(fmt.Sprintf("C%d", row), r.proposal)
		if r.label == "Parcelas" || r.label == "Anual" {
			s.set(fmt.Sprintf("D%d", row), r.count)
		}
	}
}

func (s *sheetWriter) summary(sum plan.Summary) {
	s.set("A15", "Resumo")
	s.style("A15", s.st.bold)

	s.set("A16", "Preço/m² Tabela")
	s.money("B16", sum.TablePricePerArea)
	s.set("A17", "Preço/m² Negociado")
	s.money("B17", sum.ProposalPricePerArea)
	s.set("A18", "Desconto")
	s.money("B18", sum.Discount)
	s.set("A19", "Desconto %")
	s.percent("B19", sum.DiscountPercent)
	s.set("A20", "% Financiado Tabela")
	s.percent("B20", sum.TableFinancedPercent)
	s.set("A21", "% Financiado Negociado")
	s.percent("B21", sum.ProposalFinancedPercent)
	if sum.FinancingImproved {
		s.set("C21", "melhor que a tabela")
	}
}

func (s *sheetWriter) suggestion(sg advisor.Suggestion) {
	s.set("A23", "Desconto Sugerido")
	s.percent("B23", decimal.NewFromFloat(sg.SuggestedDiscountPercentage))
	s.set("A24", "Valor Sugerido")
	s.money("B24", decimal.NewFromFloat(sg.NewNegotiatedValue))
	s.set("A25", "Justificativa")
	s.set("B25", sg.Rationale)
}
