package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readWorkbook returns the rows of the first sheet that has at least a header
// and one data row. Cells are read as displayed text and coerced later like
// any other wide-table cell.
func readWorkbook(raw []byte) ([][]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty workbook", ErrEmptyOrUnreadableInput)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrEmptyOrUnreadableInput, err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		rows = dropBlankRows(rows)
		if len(rows) >= 2 {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("%w: no sheet with data rows", ErrEmptyOrUnreadableInput)
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
