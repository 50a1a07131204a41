package extract

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// dateLayout matches the row-axis format of the historical export.
const dateLayout = "02-Jan-2006"

// WriteXLSX exports the table as a spreadsheet with a three-level column
// header (ID, Lon, Lat) and one date-labelled row per extracted day.
func WriteXLSX(table *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheetName, cell, v)
	}

	// Header block: three levels, labelled in the first column.
	if err := set(1, 1, "ID"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := set(1, 2, "Lon"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := set(1, 3, "Lat"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := set(1, 4, "Date"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range table.Points {
		col := i + 2
		if err := set(col, 1, p.ID); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := set(col, 2, p.Lon); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := set(col, 3, p.Lat); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for r, date := range table.Dates {
		row := r + 5
		if err := set(1, row, date.Format(dateLayout)); err != nil {
			return fmt.Errorf("write row %s: %w", date.Format(dateLayout), err)
		}
		for c, v := range table.Values[r] {
			if err := set(c+2, row, v); err != nil {
				return fmt.Errorf("write row %s: %w", date.Format(dateLayout), err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save spreadsheet: %w", err)
	}
	return nil
}
