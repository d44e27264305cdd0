package service

import (
	"encoding/csv"
	"io"
	"time"

	"rejectionlog/internal/model"

	"github.com/shopspring/decimal"
)

// exportColumns is the fixed column set of the rejection log export.
var exportColumns = []string{
	"Date", "Product", "Batch No", "Line No", "Status",
	"Poly Bag No", "Gross Weight (kg)", "Production Confirmed At", "Production Remarks",
	"Observed Weight (kg)", "Destruction Done By", "Destruction Verified By",
	"Has Variations", "Variation Details", "Stores Remarks",
	"QA Outcome", "QA Signed Off At", "QA Remarks",
}

// WriteLogEntriesCSV serialises entries to CSV with the fixed export layout.
func WriteLogEntriesCSV(w io.Writer, entries []model.LogEntry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportColumns); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			entry.Date,
			entry.ProductName,
			entry.BatchNo,
			entry.LineNo,
			string(entry.Status),
			entry.PolyBagNo,
			formatWeight(entry.GrossWeight),
			formatTimestamp(entry.ProductionTimestamp),
			entry.ProductionRemarks,
			formatWeight(entry.GrossWeightObserved),
			entry.DestructionDoneBy,
			entry.DestructionVerifiedBy,
			formatBool(entry.HasVariations),
			entry.VariationDetails,
			entry.StoresRemarks,
			entry.QAApprovalStatus,
			formatTimestamp(entry.QATimestamp),
			entry.QARemarks,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatWeight(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(3)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
