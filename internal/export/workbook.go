package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fiado/backend/internal/domain"
)

const (
	SummarySheet = "Resumen"
	TopSheet     = "Top productos"
	IncomeSheet  = "Ingresos"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FinancialWorkbook renders a report period as an xlsx file. Money columns
// hold currency units with two decimals; the ledger itself stays in cents.
func FinancialWorkbook(report domain.FinancialReport, top []domain.TopProduct, income []domain.IncomeEntry) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{TopSheet, IncomeSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}

	summary := [][]any{
		{"Concepto", "Monto"},
		{"Desde", report.Start.Format("2006-01-02 15:04")},
		{"Hasta", report.End.Format("2006-01-02 15:04")},
		{"Ventas brutas", units(report.GrossSalesCents)},
		{"Gastos", units(report.ExpensesCents)},
		{"Fiado generado", units(report.CreditGeneratedCents)},
		{"Cobros de fiado", units(report.PaymentsReceivedCents)},
		{"Ventas de contado", units(report.CashSalesPortionCents)},
		{"Ingreso de caja", units(report.CashInflowCents)},
		{"Flujo neto de caja", units(report.NetCashFlowCents)},
		{"Utilidad operativa", units(report.OperatingProfitCents)},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(SummarySheet, "B4", fmt.Sprintf("B%d", len(summary)), moneyStyle)

	topRows := [][]any{{"Producto", "Unidades", "Ingresos"}}
	for _, p := range top {
		topRows = append(topRows, []any{p.Name, p.QtySold, units(p.RevenueCents)})
	}
	if err := writeRows(f, TopSheet, topRows); err != nil {
		return nil, err
	}
	if len(top) > 0 {
		_ = f.SetCellStyle(TopSheet, "C2", fmt.Sprintf("C%d", len(topRows)), moneyStyle)
	}

	incomeRows := [][]any{{"Fecha", "Tipo", "Monto", "Medio de pago", "Cliente", "Detalle"}}
	for _, e := range income {
		incomeRows = append(incomeRows, []any{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			string(e.Kind),
			units(e.AmountCents),
			string(e.PaymentMethod),
			e.ClientName,
			e.Description,
		})
	}
	if err := writeRows(f, IncomeSheet, incomeRows); err != nil {
		return nil, err
	}
	if len(income) > 0 {
		_ = f.SetCellStyle(IncomeSheet, "C2", fmt.Sprintf("C%d", len(incomeRows)), moneyStyle)
	}

	for _, sheet := range []string{SummarySheet, TopSheet, IncomeSheet} {
		_ = f.SetRowStyle(sheet, 1, 1, headerStyle)
		_ = f.SetColWidth(sheet, "A", "F", 20)
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &buf, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func units(cents int64) float64 {
	return float64(cents) / 100
}
