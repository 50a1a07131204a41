package extract

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	table := &Table{
		Dates: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		Points: []Point{
			{ID: 1, Lon: 106.8, Lat: -6.2},
			{ID: 2, Lon: 107.6, Lat: -6.9},
		},
		Values: [][]float64{
			{1.5, Sentinel},
			{2.5, 0.25},
		},
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(table, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	get := func(cell string) string {
		v, err := f.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		return v
	}

	// Three-level column header.
	assert.Equal(t, "ID", get("A1"))
	assert.Equal(t, "Lon", get("A2"))
	assert.Equal(t, "Lat", get("A3"))
	assert.Equal(t, "1", get("B1"))
	assert.Equal(t, "106.8", get("B2"))
	assert.Equal(t, "-6.2", get("B3"))
	assert.Equal(t, "2", get("C1"))

	// Date-indexed rows in chronological order.
	assert.Equal(t, "01-Jan-2025", get("A5"))
	assert.Equal(t, "02-Jan-2025", get("A6"))
	assert.Equal(t, "1.5", get("B5"))
	assert.Equal(t, "-9999", get("C5"))
	assert.Equal(t, "2.5", get("B6"))
	assert.Equal(t, "0.25", get("C6"))
}
