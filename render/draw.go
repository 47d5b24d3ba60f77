package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"math"
	"strconv"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"credit-analytics/models"
)

// ErrEmptyChart is returned when a chart has nothing to draw.
var ErrEmptyChart = errors.New("chart has no data")

// Format is the output encoding of Draw.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

const (
	chartWidth   = 800
	chartHeight  = 420
	maxYearTicks = 12
)

var palette = []drawing.Color{
	drawing.ColorFromHex("4e79a7"),
	drawing.ColorFromHex("f28e2b"),
	drawing.ColorFromHex("59a14f"),
	drawing.ColorFromHex("e15759"),
	drawing.ColorFromHex("76b7b2"),
}

func seriesColor(i int) drawing.Color { return palette[i%len(palette)] }

// pointStyle draws markers only, no connecting line.
func pointStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    4,
		DotColor:    col,
	}
}

// Draw renders c with go-chart. Bar charts become a BarChart, scatter charts
// a Chart with one dot-only series per group.
func Draw(c Chart, format Format) ([]byte, error) {
	var provider gochart.RendererProvider
	switch format {
	case FormatPNG:
		provider = gochart.PNG
	case FormatSVG:
		provider = gochart.SVG
	default:
		return nil, fmt.Errorf("render: unknown format %q", format)
	}

	var buf bytes.Buffer
	switch c.Kind {
	case KindBar:
		bc, err := barChart(c)
		if err != nil {
			return nil, err
		}
		if err := bc.Render(provider, &buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", c.Name, err)
		}
	case KindScatter:
		sc, err := scatterChart(c)
		if err != nil {
			return nil, err
		}
		if err := sc.Render(provider, &buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", c.Name, err)
		}
	default:
		return nil, fmt.Errorf("render: unknown chart kind %q", c.Kind)
	}
	return buf.Bytes(), nil
}

func barChart(c Chart) (*gochart.BarChart, error) {
	var bars []gochart.Value
	lo, hi := 0.0, 0.0
	for k, s := range c.Series {
		col := seriesColor(k)
		for i, v := range s.Y {
			label := s.X[i]
			if len(c.Series) > 1 {
				label = s.Label + " " + label
			}
			bars = append(bars, gochart.Value{
				Label: label,
				Value: v,
				Style: gochart.Style{FillColor: col, StrokeColor: col},
			})
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("render %s: %w", c.Name, ErrEmptyChart)
	}
	if hi == lo {
		hi = lo + 1
	}

	width := int(float64(chartWidth-80) / float64(len(bars)) * 0.7)
	return &gochart.BarChart{
		Title:        c.Title,
		Width:        chartWidth,
		Height:       chartHeight,
		Background:   gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		BarWidth:     max(width, 2),
		UseBaseValue: lo < 0,
		YAxis:        gochart.YAxis{Range: &gochart.ContinuousRange{Min: lo, Max: hi}},
		Bars:         bars,
	}, nil
}

func scatterChart(c Chart) (*gochart.Chart, error) {
	var series []gochart.Series
	xLo, xHi := math.Inf(1), math.Inf(-1)
	yLo, yHi := 0.0, 0.0
	for k, s := range c.Series {
		cs := gochart.ContinuousSeries{Name: s.Label, Style: pointStyle(seriesColor(k))}
		for i, raw := range s.X {
			x, ok := models.ParseAmount(raw)
			if !ok {
				continue
			}
			cs.XValues = append(cs.XValues, x)
			cs.YValues = append(cs.YValues, s.Y[i])
			xLo, xHi = math.Min(xLo, x), math.Max(xHi, x)
			yLo, yHi = math.Min(yLo, s.Y[i]), math.Max(yHi, s.Y[i])
		}
		if len(cs.XValues) > 0 {
			series = append(series, cs)
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("render %s: %w", c.Name, ErrEmptyChart)
	}
	if yHi == yLo {
		yHi = yLo + 1
	}
	xLo, xHi = xLo-0.5, xHi+0.5

	ch := &gochart.Chart{
		Title:      c.Title,
		Width:      chartWidth,
		Height:     chartHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		XAxis: gochart.XAxis{
			Name:  "Year",
			Range: &gochart.ContinuousRange{Min: xLo, Max: xHi},
			Ticks: yearTicks(xLo, xHi),
		},
		YAxis:  gochart.YAxis{Name: "Amount", Range: &gochart.ContinuousRange{Min: yLo, Max: yHi}},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(ch)}
	return ch, nil
}

// yearTicks labels whole years inside [lo, hi], thinned to maxYearTicks.
func yearTicks(lo, hi float64) []gochart.Tick {
	first, last := math.Ceil(lo), math.Floor(hi)
	step := math.Max(1, math.Ceil((last-first+1)/maxYearTicks))

	var ticks []gochart.Tick
	for y := first; y <= last; y += step {
		ticks = append(ticks, gochart.Tick{Value: y, Label: strconv.FormatFloat(y, 'f', 0, 64)})
	}
	return ticks
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{margin:0;background:#fff}</style></head>
<body><div id="chart">{{.SVG}}</div></body></html>
`))

// Page wraps the SVG drawing of chart in a standalone HTML document.
func Page(chart Chart) ([]byte, error) {
	svg, err := Draw(chart, FormatSVG)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, struct {
		Title string
		SVG   template.HTML
	}{chart.Title, template.HTML(svg)})
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
