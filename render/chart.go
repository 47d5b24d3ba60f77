package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"credit-analytics/models"
	"credit-analytics/utils"
)

// ErrStaleResult is returned for charts computed from a dataset that is no
// longer current.
var ErrStaleResult = errors.New("stale result")

// Kind is the chart type.
type Kind string

const (
	KindBar     Kind = "bar"
	KindScatter Kind = "scatter"
)

// Chart is one render request. Generation names the dataset it was built from.
type Chart struct {
	Generation uint64          `json:"generation"`
	Name       string          `json:"name"`
	Kind       Kind            `json:"kind"`
	Title      string          `json:"title"`
	Series     []models.Series `json:"series"`
}

// Renderer draws charts. Implementations live outside the analytics core.
type Renderer interface {
	Render(ctx context.Context, chart Chart) error
}

// SingleCharts builds the histogram and scatter views for one record subset.
func SingleCharts(generation uint64, label string, records []models.Record) []Chart {
	s := YearSeries(label, records)
	return []Chart{
		{Generation: generation, Name: "histogram", Kind: KindBar, Title: label, Series: []models.Series{s}},
		{Generation: generation, Name: "scatter", Kind: KindScatter, Title: label + " by year", Series: []models.Series{s}},
	}
}

// ComparisonCharts builds the sum bar and per-group scatter for a comparison.
// Group order is preserved; sides without data have no bar.
func ComparisonCharts(cmp *models.Comparison) []Chart {
	sums := models.Series{Label: "Sum"}
	scatter := make([]models.Series, 0, len(cmp.Sides))
	for _, side := range cmp.Sides {
		if side.OK() {
			sums.X = append(sums.X, side.Label)
			sums.Y = append(sums.Y, side.Summary.Sum)
		}
		scatter = append(scatter, GroupSeries(side.Label, side.Records))
	}

	title := fmt.Sprintf("%s vs %s", cmp.Sides[0].Label, cmp.Sides[1].Label)
	return []Chart{
		{Generation: cmp.Generation, Name: "comp-histogram", Kind: KindBar, Title: title, Series: []models.Series{sums}},
		{Generation: cmp.Generation, Name: "comp-scatter", Kind: KindScatter, Title: title, Series: scatter},
	}
}

// generations is the part of the dataset store the dispatcher needs.
type generations interface {
	IsCurrent(generation uint64) bool
}

// Dispatcher forwards charts to a Renderer only while their dataset is
// current. Invalidate cancels renders already in flight.
type Dispatcher struct {
	store    generations
	renderer Renderer
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	nextID   uint64
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store generations, renderer Renderer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Dispatcher{
		store:    store,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "render_dispatcher")),
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Dispatch renders charts in order, stopping at the first failure. A chart
// from an old generation fails with ErrStaleResult and is not rendered.
func (d *Dispatcher) Dispatch(ctx context.Context, charts ...Chart) error {
	ctx, done := d.track(ctx)
	defer done()

	for _, c := range charts {
		if !d.store.IsCurrent(c.Generation) {
			d.logger.Debug("stale chart dropped",
				slog.String("chart", c.Name),
				slog.Uint64("generation", c.Generation))
			return fmt.Errorf("chart %s: %w", c.Name, ErrStaleResult)
		}
		if err := d.renderer.Render(ctx, c); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("chart %s: %w", c.Name, ErrStaleResult)
			}
			return fmt.Errorf("chart %s: %w", c.Name, err)
		}
	}
	return nil
}

// Invalidate cancels every render in flight. Wire it to dataset replacement.
func (d *Dispatcher) Invalidate(*models.Dataset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, cancel := range d.inflight {
		cancel()
		delete(d.inflight, id)
	}
}

func (d *Dispatcher) track(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.inflight[id] = cancel
	d.mu.Unlock()

	return ctx, func() {
		d.mu.Lock()
		delete(d.inflight, id)
		d.mu.Unlock()
		cancel()
	}
}
