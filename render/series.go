package render

import (
	"sort"

	"credit-analytics/models"
)

// SortByYear returns a copy of records ordered by numeric year ascending.
// Records whose year is not numeric keep their relative order after the rest.
func SortByYear(records []models.Record) []models.Record {
	sorted := append([]models.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, aok := sorted[i].YearValue()
		b, bok := sorted[j].YearValue()
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
	return sorted
}

// YearSeries builds the single-series bar view: years on x, amounts on y,
// year-ascending.
func YearSeries(label string, records []models.Record) models.Series {
	return seriesOf(label, SortByYear(records))
}

// ScatterPoints builds the single-series scatter view, year-ascending.
// Records with a non-numeric year have no x position and are left out.
func ScatterPoints(records []models.Record) []models.Point {
	return pointsOf(SortByYear(records))
}

// GroupSeries keeps the records' own order. Used for comparison views.
func GroupSeries(label string, records []models.Record) models.Series {
	return seriesOf(label, records)
}

// GroupPoints is ScatterPoints without sorting.
func GroupPoints(records []models.Record) []models.Point {
	return pointsOf(records)
}

func seriesOf(label string, records []models.Record) models.Series {
	s := models.Series{
		Label: label,
		X:     make([]string, len(records)),
		Y:     make([]float64, len(records)),
	}
	for i, r := range records {
		s.X[i] = r.Year
		s.Y[i] = r.Amount
	}
	return s
}

func pointsOf(records []models.Record) []models.Point {
	out := make([]models.Point, 0, len(records))
	for _, r := range records {
		if x, ok := r.YearValue(); ok {
			out = append(out, models.Point{X: x, Y: r.Amount})
		}
	}
	return out
}
