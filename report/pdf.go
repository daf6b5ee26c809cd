package report

// pdf.go: printable customer statement using go-pdf/fpdf.
// Letter-size page with:
//   - Header with customer name and statement window
//   - Credit line figures (limit, principal, interest, available)
//   - Consumption table
//   - Payment table with interest / principal split

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const pdfDate = "02/01/2006 15:04"

func money(d decimal.Decimal) string { return "RD$" + d.StringFixed(2) }

// WriteStatementPDF renders st to w.
func WriteStatementPDF(w io.Writer, st Statement) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	// Core fonts are cp1252; customer names carry accents.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Estado de Cuenta", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, tr(st.Customer.Name), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5,
		fmt.Sprintf("%s - %s", st.From.Format("02/01/2006"), st.To.Format("02/01/2006")),
		"", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Credit line ───────────────────────────────────────────────────────────
	half := contentW / 2
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(half, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(half, 5, value, "", 1, "R", false, 0, "")
	}
	if st.CreditLine == nil {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(contentW, 5, tr("El cliente no tiene línea de crédito."), "", 1, "L", false, 0, "")
	} else {
		row("Límite aprobado", money(st.CreditLine.ApprovedLimit))
		row("Capital utilizado", money(st.CreditLine.PrincipalUtilized))
		row("Interés adeudado", money(st.CreditLine.InterestOwed))
		row("Deuda total", money(st.TotalDebt))
		row("Disponible", money(st.Available))
		row("Estado", string(st.Status))
	}
	pdf.Ln(4)

	// ── Consumptions ──────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, "Consumos", "", 1, "L", false, 0, "")
	c1, c2, c3, c4 := contentW*0.25, contentW*0.43, contentW*0.16, contentW*0.16
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(c1, 5, "Fecha", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c2, 5, tr("Descripción"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(c3, 5, "Monto", "B", 0, "R", false, 0, "")
	pdf.CellFormat(c4, 5, tr("Interés"), "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, ev := range st.Consumptions {
		desc := ev.Description
		if len([]rune(desc)) > 40 {
			desc = string([]rune(desc)[:39]) + "..."
		}
		pdf.CellFormat(c1, 5, ev.At.Format(pdfDate), "", 0, "L", false, 0, "")
		pdf.CellFormat(c2, 5, tr(desc), "", 0, "L", false, 0, "")
		pdf.CellFormat(c3, 5, money(ev.Amount), "", 0, "R", false, 0, "")
		pdf.CellFormat(c4, 5, money(ev.InterestGenerated), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(c1+c2, 6, "Total consumido", "T", 0, "L", false, 0, "")
	pdf.CellFormat(c3+c4, 6, money(st.ConsumedTotal), "T", 1, "R", false, 0, "")
	pdf.Ln(4)

	// ── Payments ──────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, "Pagos", "", 1, "L", false, 0, "")
	p1, p2, p3, p4 := contentW*0.31, contentW*0.23, contentW*0.23, contentW*0.23
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(p1, 5, "Fecha", "B", 0, "L", false, 0, "")
	pdf.CellFormat(p2, 5, "Total", "B", 0, "R", false, 0, "")
	pdf.CellFormat(p3, 5, tr("A interés"), "B", 0, "R", false, 0, "")
	pdf.CellFormat(p4, 5, "A capital", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, ev := range st.Payments {
		pdf.CellFormat(p1, 5, ev.At.Format(pdfDate), "", 0, "L", false, 0, "")
		pdf.CellFormat(p2, 5, money(ev.Total), "", 0, "R", false, 0, "")
		pdf.CellFormat(p3, 5, money(ev.InterestPortion), "", 0, "R", false, 0, "")
		pdf.CellFormat(p4, 5, money(ev.PrincipalPortion), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(p1, 6, "Total pagado", "T", 0, "L", false, 0, "")
	pdf.CellFormat(p2+p3+p4, 6, money(st.PaidTotal), "T", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render statement: %w", err)
	}
	return nil
}
