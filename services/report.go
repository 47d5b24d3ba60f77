package services

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"credit-analytics/models"
)

// Printer writes human-readable reports to a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer. ANSI colours are emitted only when color is true.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// PrintDataset prints the load summary: record count and country list.
func (p *Printer) PrintDataset(ds *models.Dataset) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(p.w, "\n%s\n", p.paint("1;35", sep))
	fmt.Fprintf(p.w, "%s\n", p.paint("1;35", "  CREDIT DATASET"))
	fmt.Fprintf(p.w, "%s\n\n", p.paint("1;35", sep))

	if ds.Shape != "" {
		fmt.Fprintf(p.w, "  Source   : %s (%s)\n", ds.Source, ds.Shape)
	} else {
		fmt.Fprintf(p.w, "  Source   : %s\n", ds.Source)
	}
	fmt.Fprintf(p.w, "  Records  : %s\n", p.paint("1", fmt.Sprint(ds.Len())))
	fmt.Fprintf(p.w, "  Skipped  : %d\n\n", ds.Skipped)

	countries := ds.Countries()
	fmt.Fprintf(p.w, "%s\n", p.paint("1;33", fmt.Sprintf("  Countries (%d)", len(countries))))
	fmt.Fprintf(p.w, "  %s\n", thin)
	for _, c := range countries {
		fmt.Fprintf(p.w, "  %s\n", truncate(c, 50))
	}
	fmt.Fprintln(p.w)
}

// PrintSummary prints one statistics block, or a no-data line when err is set.
func (p *Printer) PrintSummary(title string, s *models.Summary, err error) {
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(p.w, "%s\n", p.paint("1;33", "  "+title))
	fmt.Fprintf(p.w, "  %s\n", thin)
	if err != nil || s == nil {
		fmt.Fprintf(p.w, "  %s\n\n", noDataText(err))
		return
	}

	rows := []struct {
		label string
		value float64
	}{
		{"Max", s.Max},
		{"Min", s.Min},
		{"Sum", s.Sum},
		{"Mean", s.Mean},
		{"Mode", s.Mode},
		{"Variance", s.Variance},
		{"Std. deviation", s.StdDev},
	}
	fmt.Fprintf(p.w, "  %-16s: %d\n", "Records", s.Count)
	for _, r := range rows {
		fmt.Fprintf(p.w, "  %-16s: %s\n", r.label, p.paint("1;32", fmt.Sprintf("%.2f", r.value)))
	}
	fmt.Fprintln(p.w)
}

// PrintComparison prints both sides of a comparison, each independently.
func (p *Printer) PrintComparison(c *models.Comparison) {
	sep := strings.Repeat("═", 54)
	fmt.Fprintf(p.w, "%s\n", p.paint("1;35", sep))
	fmt.Fprintf(p.w, "%s\n", p.paint("1;35", fmt.Sprintf("  COMPARISON BY %s", strings.ToUpper(c.Key))))
	fmt.Fprintf(p.w, "%s\n\n", p.paint("1;35", sep))
	for _, side := range c.Sides {
		p.PrintSummary(side.Label, side.Summary, side.Err)
	}
}

func noDataText(err error) string {
	if err == nil || errors.Is(err, ErrEmptyDataset) {
		return "No data found"
	}
	return "Error: " + err.Error()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
