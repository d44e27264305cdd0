package service

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestWriteLogEntriesCSV(t *testing.T) {
	weight := decimal.NewFromFloat(12.5)
	observed := decimal.NewFromFloat(12.45)
	signedOff := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	entries := []model.LogEntry{
		{
			ID:                  uuid.New(),
			Date:                "2026-03-12",
			ProductName:         "Paracetamol 500mg",
			BatchNo:             "PCT001",
			LineNo:              "Line-A1",
			Status:              model.StatusApproved,
			PolyBagNo:           "PB-101",
			GrossWeight:         &weight,
			GrossWeightObserved: &observed,
			DestructionDoneBy:   "Mike Stores",
			HasVariations:       true,
			VariationDetails:    "0.05kg short on scale B",
			QAApprovalStatus:    model.QAOutcomeApproved,
			QATimestamp:         &signedOff,
			QARemarks:           "Verified against batch record",
		},
		{
			ID:          uuid.New(),
			Date:        "2026-03-13",
			ProductName: "Ibuprofen 400mg",
			BatchNo:     "IBU003",
			LineNo:      "Line-B2",
			Status:      model.StatusProductionPending,
		},
	}

	var buf bytes.Buffer
	if err := WriteLogEntriesCSV(&buf, entries); err != nil {
		t.Fatalf("WriteLogEntriesCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv back: %v", err)
	}
	if got, want := len(records), 3; got != want {
		t.Fatalf("row count = %d, want %d", got, want)
	}
	if got, want := len(records[0]), len(exportColumns); got != want {
		t.Fatalf("header width = %d, want %d", got, want)
	}

	first := records[1]
	if first[0] != "2026-03-12" || first[1] != "Paracetamol 500mg" {
		t.Errorf("unexpected identity columns: %v", first[:2])
	}
	if first[6] != "12.500" {
		t.Errorf("gross weight = %q, want %q", first[6], "12.500")
	}
	if first[9] != "12.450" {
		t.Errorf("observed weight = %q, want %q", first[9], "12.450")
	}
	if first[12] != "yes" {
		t.Errorf("has variations = %q, want yes", first[12])
	}
	if first[16] != "2026-03-14T10:30:00Z" {
		t.Errorf("qa timestamp = %q", first[16])
	}

	// Untouched stage fields export as empty cells, not zero values.
	second := records[2]
	for _, idx := range []int{5, 6, 7, 9, 15, 16} {
		if second[idx] != "" {
			t.Errorf("column %d = %q, want empty", idx, second[idx])
		}
	}
	if second[12] != "no" {
		t.Errorf("has variations = %q, want no", second[12])
	}
}
