package models

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one (country, year, amount) observation. Amount is always finite.
type Record struct {
	Country string  `json:"country"`
	Year    string  `json:"year"`
	Amount  float64 `json:"amount"`
}

// ParseAmount is the only string-to-number coercion used during ingestion.
// Empty cells and non-finite values are rejected rather than coerced to zero.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NewRecord builds a Record from raw cells, reporting false when the country
// or year is blank or the amount does not coerce to a finite number.
func NewRecord(country, year, amount string) (Record, bool) {
	country = strings.TrimSpace(country)
	year = strings.TrimSpace(year)
	if country == "" || year == "" {
		return Record{}, false
	}
	v, ok := ParseAmount(amount)
	if !ok {
		return Record{}, false
	}
	return Record{Country: country, Year: year, Amount: v}, true
}

// YearValue returns the numeric value of the year label, if it has one.
func (r Record) YearValue() (float64, bool) {
	return ParseAmount(r.Year)
}

// Shape identifies the layout of an input document.
type Shape string

const (
	ShapeLongCSV   Shape = "long-csv"
	ShapeWideTable Shape = "wide-table"
	ShapeWorkbook  Shape = "workbook"
)

// ParseShape validates a shape name supplied by a user or config.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeLongCSV:
		return ShapeLongCSV, nil
	case ShapeWideTable:
		return ShapeWideTable, nil
	case ShapeWorkbook:
		return ShapeWorkbook, nil
	}
	return "", fmt.Errorf("unknown input shape %q", s)
}

// ShapeForFilename picks the shape from the file extension. Content is never sniffed.
func ShapeForFilename(name string) Shape {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ShapeLongCSV
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ShapeWorkbook
	default:
		return ShapeWideTable
	}
}
