package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"credit-analytics/models"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for name, rows := range sheets {
		if name != "Sheet1" {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestWorkbookReshape(t *testing.T) {
	raw := buildWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Country Name", 2020, 2021},
			{"Brazil", 10, 20.5},
			{"Argentina", nil, 30},
		},
	})

	res, err := newTestIngestor().Parse(raw, models.ShapeWorkbook)
	require.NoError(t, err)

	assert.Equal(t, []models.Record{
		{Country: "Brazil", Year: "2020", Amount: 10},
		{Country: "Brazil", Year: "2021", Amount: 20.5},
		{Country: "Argentina", Year: "2021", Amount: 30},
	}, res.Records)
}

func TestWorkbookSkipsEmptySheets(t *testing.T) {
	raw := buildWorkbook(t, map[string][][]interface{}{
		"Sheet1": {},
		"Data": {
			{"Country", "2019"},
			{"Chile", 4},
		},
	})

	res, err := newTestIngestor().Parse(raw, models.ShapeWorkbook)
	require.NoError(t, err)
	assert.Equal(t, []models.Record{{Country: "Chile", Year: "2019", Amount: 4}}, res.Records)
}
