package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/pkg/dateutil"
)

// Statement is the monthly duty pay statement of one roster
type Statement struct {
	Title  string
	Year   int
	Month  time.Month
	RunID  string
	Result *billing.Result
}

var columnWidths = []float64{12, 14, 36, 36, 14, 22, 16, 22}

// Write renders the statement as a one-page A4 PDF
func Write(w io.Writer, st Statement) error {
	pdf, err := render(st)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// WriteStatement renders the statement into path, creating its directory
func WriteStatement(path string, st Statement) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	pdf, err := render(st)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(path)
}

func render(st Statement) (*gofpdf.Fpdf, error) {
	if st.Result == nil {
		return nil, fmt.Errorf("statement has no result")
	}
	title := st.Title
	if title == "" {
		title = "Guardias"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("%s %04d-%02d", title, st.Year, int(st.Month))))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Tariff mode: %s", st.Result.Mode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Withholding: %s%%", st.Result.WithholdingPercent.StringFixed(2)))
	pdf.Ln(5)
	if st.RunID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Run: %s", st.RunID))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	header := []string{"#", "Grade", "Start", "End", "Blocks", "Gross", "Ret. %", "Net"}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range header {
		pdf.CellFormat(columnWidths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, s := range st.Result.Summaries {
		row := []string{
			fmt.Sprintf("%d", s.DutyIndex+1),
			string(s.Grade),
			dateutil.FormatDateTime(s.Start),
			dateutil.FormatDateTime(s.End),
			fmt.Sprintf("%d", s.Blocks),
			s.Gross.StringFixed(2),
			s.WithholdingPercent.StringFixed(2),
			s.Net.StringFixed(2),
		}
		for i, v := range row {
			align := "L"
			if i == 0 || i >= 4 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], 6, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Gross: %s", st.Result.TotalGross().StringFixed(2)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Net: %s", st.Result.TotalNet().StringFixed(2)))
	pdf.Ln(10)

	if len(st.Result.Rollup) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		for _, h := range []string{"Grade", "Duty type", "Hours", "Amount"} {
			pdf.CellFormat(40, 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		for _, r := range st.Result.Rollup {
			pdf.CellFormat(40, 6, string(r.Grade), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, tr(r.DutyType), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, r.TotalHours.StringFixed(1), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, r.TotalAmount.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return pdf, nil
}
