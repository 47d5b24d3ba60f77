package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"credit-analytics/utils"
)

// FileRenderer is a Renderer that writes <dir>/<chart name>.png and .svg
// straight from go-chart, without a browser.
type FileRenderer struct {
	dir    string
	logger *slog.Logger
}

// NewFileRenderer creates dir if needed.
func NewFileRenderer(dir string, logger *slog.Logger) (*FileRenderer, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("render: create dir: %w", err)
	}
	return &FileRenderer{dir: dir, logger: logger.With(slog.String("component", "file_renderer"))}, nil
}

// Render writes both encodings of chart. Charts without data are skipped.
func (f *FileRenderer) Render(ctx context.Context, chart Chart) error {
	for _, format := range []Format{FormatPNG, FormatSVG} {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := Draw(chart, format)
		if errors.Is(err, ErrEmptyChart) {
			f.logger.Info("chart skipped, no data", slog.String("chart", chart.Name))
			return nil
		}
		if err != nil {
			return err
		}

		path := filepath.Join(f.dir, chart.Name+"."+string(format))
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("render: write %s: %w", path, err)
		}
		f.logger.Info("chart rendered",
			slog.String("chart", chart.Name),
			slog.Uint64("generation", chart.Generation),
			slog.String("path", path))
	}
	return nil
}
