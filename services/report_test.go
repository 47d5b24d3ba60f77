package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-analytics/models"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	s, err := ComputeStatistics(recordsOf(1, 2, 3))
	require.NoError(t, err)
	p.PrintSummary("All countries", s, nil)

	out := buf.String()
	assert.Contains(t, out, "All countries")
	assert.Contains(t, out, "Mean            : 2.00")
	assert.Contains(t, out, "Std. deviation  : 0.82")
	assert.NotContains(t, out, "\033[")
}

func TestPrintComparisonReportsMissingSide(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	cmp, err := Compare(sampleRecords(), GroupByCountry, "Brazil", "Chile")
	require.NoError(t, err)
	p.PrintComparison(cmp)

	out := buf.String()
	assert.Contains(t, out, "COMPARISON BY COUNTRY")
	assert.Contains(t, out, "Brazil")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "No data found")
}

func TestPrintDataset(t *testing.T) {
	var buf bytes.Buffer
	ds := &models.Dataset{Source: "wb.txt", Shape: models.ShapeWideTable, Records: sampleRecords(), Skipped: 2}

	NewPrinter(&buf, false).PrintDataset(ds)

	out := buf.String()
	assert.Contains(t, out, "Records  : 5")
	assert.Contains(t, out, "Countries (3)")
	assert.Contains(t, out, "Argentina")
}
