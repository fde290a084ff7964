package ingest

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteReportXLSX saves a run summary plus the skipped-row list to a
// spreadsheet so operators can reconcile missing parent data after a run.
func WriteReportXLSX(path, endpoint string, fetch *FetchReport, persist *PersistReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	f.SetSheetName("Sheet1", summary)

	rows := [][]any{
		{"Endpoint", endpoint},
		{"Run finished", time.Now().Format(time.RFC3339)},
		{"Max page", fetch.MaxPage},
		{"Records fetched", fetch.Records},
		{"Pages retried", fetch.Retries},
		{"Transform skips", fetch.TransformSkips},
		{"Rows written", persist.Written},
		{"Rows skipped", len(persist.Skipped)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	const skipped = "Skipped"
	if _, err := f.NewSheet(skipped); err != nil {
		return fmt.Errorf("create skipped sheet: %w", err)
	}
	header := []any{"Table", "ItemID", "Reason"}
	if err := f.SetSheetRow(skipped, "A1", &header); err != nil {
		return fmt.Errorf("write skipped header: %w", err)
	}
	for i, s := range persist.Skipped {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{s.Table, s.ItemID, s.Reason}
		if err := f.SetSheetRow(skipped, cell, &row); err != nil {
			return fmt.Errorf("write skipped row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
