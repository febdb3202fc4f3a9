package interfaces

import (
	"bytes"
	"testing"
	"time"

	"xrgi-portal/internal/ecpower"
	"xrgi-portal/internal/stats/application"
)

func testReport() application.Report {
	return application.Report{
		Facility: ecpower.Facility{ID: "f1", Name: "Bakery Nord", XRGIID: "1234567890"},
		Statistics: ecpower.Statistics{
			FacilityID:        "f1",
			PeriodStart:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			ProducedEnergyKWh: 12500.5,
			OperatingHours:    980,
			CO2SavingsKg:      3700.25,
			MonthlyHours: map[string]float64{
				"january": 80.5, "february": 75.2, "december": 90.1,
			},
		},
	}
}

func TestBuildReportPDF(t *testing.T) {
	data, err := BuildReportPDF(testReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("expected PDF header")
	}
}

func TestBuildReportXLSX(t *testing.T) {
	data, err := BuildReportXLSX(testReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("expected zip header")
	}
}

func TestBuildReport_NoMonthlyHours(t *testing.T) {
	report := testReport()
	report.Statistics.MonthlyHours = nil
	if _, err := BuildReportPDF(report); err != nil {
		t.Fatalf("pdf without months: %v", err)
	}
	if _, err := BuildReportXLSX(report); err != nil {
		t.Fatalf("xlsx without months: %v", err)
	}
}
