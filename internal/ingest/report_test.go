package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")

	fetch := &FetchReport{MaxPage: 181, Records: 36400, TransformSkips: 2, Retries: 1}
	persist := &PersistReport{
		Written: 36398,
		Skipped: []SkippedRow{
			{Table: "listings", ItemID: 999, Reason: "missing parent item"},
		},
	}

	require.NoError(t, WriteReportXLSX(path, "commerce/prices", fetch, persist))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	endpoint, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "commerce/prices", endpoint)

	retried, err := f.GetCellValue("Summary", "B5")
	require.NoError(t, err)
	assert.Equal(t, "1", retried)

	table, err := f.GetCellValue("Skipped", "A2")
	require.NoError(t, err)
	assert.Equal(t, "listings", table)

	itemID, err := f.GetCellValue("Skipped", "B2")
	require.NoError(t, err)
	assert.Equal(t, "999", itemID)
}
