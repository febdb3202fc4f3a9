package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"xrgi-portal/internal/stats/application"
)

var monthOrder = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// BuildReportPDF renders a facility statistics report as PDF.
func BuildReportPDF(report application.Report) ([]byte, error) {
	stats := report.Statistics
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Facility Statistics Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Facility: %s", report.Facility.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("XRGI ID: %s", report.Facility.XRGIID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s",
		stats.PeriodStart.Format("2006-01-02"), stats.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Produced Energy (kWh): %.2f", stats.ProducedEnergyKWh))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Operating Hours: %.1f", stats.OperatingHours))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("CO2 Savings (kg): %.2f", stats.CO2SavingsKg))
	pdf.Ln(8)

	if len(stats.MonthlyHours) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, "Month", "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, "Operating Hours", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, month := range monthOrder {
			hours, ok := stats.MonthlyHours[month]
			if !ok {
				continue
			}
			pdf.CellFormat(70, 6, month, "1", 0, "L", false, 0, "")
			pdf.CellFormat(70, 6, fmt.Sprintf("%.2f", hours), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a facility statistics report as XLSX.
func BuildReportXLSX(report application.Report) ([]byte, error) {
	stats := report.Statistics
	f := excelize.NewFile()
	summarySheet := "summary"
	monthsSheet := "months"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(monthsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Facility Statistics Report")
	_ = f.SetCellValue(summarySheet, "A3", "Facility")
	_ = f.SetCellValue(summarySheet, "B3", report.Facility.Name)
	_ = f.SetCellValue(summarySheet, "A4", "XRGI ID")
	_ = f.SetCellValue(summarySheet, "B4", report.Facility.XRGIID)
	_ = f.SetCellValue(summarySheet, "A5", "Period Start")
	_ = f.SetCellValue(summarySheet, "B5", stats.PeriodStart.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A6", "Period End")
	_ = f.SetCellValue(summarySheet, "B6", stats.PeriodEnd.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A7", "Produced Energy (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", stats.ProducedEnergyKWh)
	_ = f.SetCellValue(summarySheet, "A8", "Operating Hours")
	_ = f.SetCellValue(summarySheet, "B8", stats.OperatingHours)
	_ = f.SetCellValue(summarySheet, "A9", "CO2 Savings (kg)")
	_ = f.SetCellValue(summarySheet, "B9", stats.CO2SavingsKg)

	_ = f.SetCellValue(monthsSheet, "A1", "Month")
	_ = f.SetCellValue(monthsSheet, "B1", "Operating Hours")
	row := 2
	for _, month := range monthOrder {
		hours, ok := stats.MonthlyHours[month]
		if !ok {
			continue
		}
		_ = f.SetCellValue(monthsSheet, fmt.Sprintf("A%d", row), month)
		_ = f.SetCellValue(monthsSheet, fmt.Sprintf("B%d", row), hours)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
